package ddb

import (
	"archivist/internal/types"
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ArchiveStore keeps archives under their site's partition (SITE#<id>, ARCHIVE#<id>) and a
// pointer item per archive (ARCHIVE#<id>, META) for lookups by id.
type ArchiveStore struct {
	table string
	cli   *dynamodb.Client
}

type archiveItem struct {
	PK      string        `dynamodbav:"PK"`
	SK      string        `dynamodbav:"SK"`
	Archive types.Archive `dynamodbav:"archive"`
}

type archiveMetaItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	SiteID int    `dynamodbav:"site_id"`
}

func NewArchiveStore(table string, cli *dynamodb.Client) *ArchiveStore {
	return &ArchiveStore{table: table, cli: cli}
}

func (s *ArchiveStore) FindArchive(ctx context.Context, q types.ArchiveQuery, minArchivedAt time.Time) (types.Lookup, error) {
	archives, err := s.siteArchives(ctx, q.SiteID)
	if err != nil {
		return types.Lookup{}, err
	}
	return types.SelectArchive(archives, q, minArchivedAt), nil
}

func (s *ArchiveStore) HasFinerArchives(ctx context.Context, siteID int, period types.Period) (bool, error) {
	archives, err := s.siteArchives(ctx, siteID)
	if err != nil {
		return false, err
	}
	return types.HasFinerArchive(archives, siteID, period), nil
}

func (s *ArchiveStore) Invalidate(ctx context.Context, siteIDs []int, dates []time.Time, cascade bool, segment string) error {
	for _, siteID := range siteIDs {
		archives, err := s.siteArchives(ctx, siteID)
		if err != nil {
			return err
		}
		for _, a := range archives {
			if a.Done == types.DoneInvalidated {
				continue
			}
			for _, d := range dates {
				if !types.ShouldInvalidate(a, siteIDs, d, cascade, segment) {
					continue
				}
				_, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
					TableName:                &s.table,
					Key:                      key(pkSite(siteID), skArchive(int64(a.ID))),
					UpdateExpression:         awsString("SET #a.#done = :done"),
					ExpressionAttributeNames: map[string]string{"#a": "archive", "#done": "done"},
					ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
						":done": &ddbTypes.AttributeValueMemberN{Value: itoa(int64(types.DoneInvalidated))},
					},
				})
				if err != nil {
					return types.StoreErr(err, "invalidate archive %d", a.ID)
				}
				break
			}
		}
	}
	return nil
}

func (s *ArchiveStore) SaveArchive(ctx context.Context, a types.Archive) (types.ArchiveID, error) {
	out, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                &s.table,
		Key:                      key(pkSeq(), SArchive),
		UpdateExpression:         awsString("ADD #n :one"),
		ExpressionAttributeNames: map[string]string{"#n": "n"},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":one": &ddbTypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: ddbTypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, types.StoreErr(err, "allocate archive id")
	}
	n, ok := out.Attributes["n"].(*ddbTypes.AttributeValueMemberN)
	if !ok {
		return 0, types.Err(types.ErrStore, nil, "archive sequence returned no value")
	}
	id, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, types.StoreErr(err, "archive sequence value %q", n.Value)
	}
	a.ID = types.ArchiveID(id)

	item, err := attributevalue.MarshalMap(archiveItem{PK: pkSite(a.SiteID), SK: skArchive(id), Archive: a})
	if err != nil {
		return 0, err
	}
	meta, err := attributevalue.MarshalMap(archiveMetaItem{PK: pkArchive(id), SK: skMeta(), SiteID: a.SiteID})
	if err != nil {
		return 0, err
	}
	_, err = s.cli.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbTypes.TransactWriteItem{
			{Put: &ddbTypes.Put{TableName: &s.table, Item: item}},
			{Put: &ddbTypes.Put{TableName: &s.table, Item: meta}},
		},
	})
	if err != nil {
		return 0, types.StoreErr(err, "save archive %d", id)
	}
	return a.ID, nil
}

func (s *ArchiveStore) GetArchive(ctx context.Context, id types.ArchiveID) (types.Archive, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(pkArchive(int64(id)), skMeta()),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.Archive{}, types.StoreErr(err, "locate archive %d", id)
	}
	if out.Item == nil {
		return types.Archive{}, types.Err(types.ErrNotFound, nil, "archive %d", id)
	}
	var meta archiveMetaItem
	if err := attributevalue.UnmarshalMap(out.Item, &meta); err != nil {
		return types.Archive{}, types.StoreErr(err, "decode archive %d pointer", id)
	}

	out, err = s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(pkSite(meta.SiteID), skArchive(int64(id))),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.Archive{}, types.StoreErr(err, "get archive %d", id)
	}
	if out.Item == nil {
		return types.Archive{}, types.Err(types.ErrNotFound, nil, "archive %d", id)
	}
	var item archiveItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return types.Archive{}, types.StoreErr(err, "decode archive %d", id)
	}
	return item.Archive, nil
}

func (s *ArchiveStore) siteArchives(ctx context.Context, siteID int) ([]types.Archive, error) {
	items, err := queryAll(ctx, s.cli, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk": &ddbTypes.AttributeValueMemberS{Value: pkSite(siteID)},
			":sk": &ddbTypes.AttributeValueMemberS{Value: SArchive + "#"},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, types.StoreErr(err, "list archives of site %d", siteID)
	}
	archives := make([]types.Archive, 0, len(items))
	for _, it := range items {
		var item archiveItem
		if err := attributevalue.UnmarshalMap(it, &item); err != nil {
			return nil, types.StoreErr(err, "decode archive of site %d", siteID)
		}
		archives = append(archives, item.Archive)
	}
	return archives, nil
}
