package engine

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"time"

	json "github.com/goccy/go-json"
)

// Notifier tells downstream consumers that an archive became available.
type Notifier struct {
	pub      ports.Publisher
	topicARN string
}

func NewNotifier(pub ports.Publisher, topicARN string) *Notifier {
	return &Notifier{pub: pub, topicARN: topicARN}
}

// FinalizedMessage is the payload published for a finalized archive. The blob is left out.
type FinalizedMessage struct {
	Event      string          `json:"event"`
	ArchiveID  types.ArchiveID `json:"archive_id"`
	SiteID     int             `json:"site_id"`
	Period     string          `json:"period"`
	Date       string          `json:"date"`
	Segment    string          `json:"segment,omitempty"`
	Group      string          `json:"group"`
	Visits     int64           `json:"visits"`
	ArchivedAt time.Time       `json:"archived_at"`
}

func (n *Notifier) ArchiveFinalized(ctx context.Context, a types.Archive) error {
	payload, err := json.Marshal(FinalizedMessage{
		Event:      "archive.finalized",
		ArchiveID:  a.ID,
		SiteID:     a.SiteID,
		Period:     string(a.Period.Label),
		Date:       a.Period.DateParam(),
		Segment:    a.Segment,
		Group:      a.Group,
		Visits:     a.Visits,
		ArchivedAt: a.ArchivedAt,
	})
	if err != nil {
		return err
	}
	return n.pub.PublishRaw(ctx, n.topicARN, payload)
}
