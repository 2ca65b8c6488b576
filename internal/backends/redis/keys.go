package redis

import "fmt"

const (
	cacheKeyTemplate        = "_archivist_cache_%s"
	lockKeyTemplate         = "_archivist_lock_%s"
	invalidationDatesKey    = "_archivist_inval_dates"
	invalidationKeyTemplate = "_archivist_inval_%s"
	archiveSeqKey           = "_archivist_archive_seq"
	archiveIndexKey         = "_archivist_archive_site"
	archivesKeyTemplate     = "_archivist_archives_%d"
	visitsKeyTemplate       = "_archivist_visits_%d"
	sitesKey                = "_archivist_sites"
)

func getCacheKey(key string) string      { return fmt.Sprintf(cacheKeyTemplate, key) }
func getLockKey(key string) string       { return fmt.Sprintf(lockKeyTemplate, key) }
func getInvalidationKey(d string) string { return fmt.Sprintf(invalidationKeyTemplate, d) }
func getArchivesKey(siteID int) string   { return fmt.Sprintf(archivesKeyTemplate, siteID) }
func getVisitsKey(siteID int) string     { return fmt.Sprintf(visitsKeyTemplate, siteID) }
