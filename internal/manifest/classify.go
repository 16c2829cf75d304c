package manifest

import "strings"

// Kind is the backup classification of a declared volume.
type Kind int

const (
	// KindOther marks volumes that no file-level strategy touches.
	KindOther Kind = iota
	// KindEmbeddedDB marks single-file database directories (sqlite,
	// pocketbase and friends) backed up as one archive.
	KindEmbeddedDB
	// KindBulkStorage marks non-database file volumes (uploads, media)
	// backed up one archive per volume.
	KindBulkStorage
)

// embeddedKeywords match embedded file-database volumes.
var embeddedKeywords = []string{"db-data", "dbdata"}

// embeddedPathExclusions keep a relational engine's own data directory from
// being treated as an embedded file database.
var embeddedPathExclusions = []string{"mysql", "postgres", "redis"}

// bulkKeywords match bulk file-storage volumes. "minio-data" is the common
// self-hosted object-store volume name on this platform.
var bulkKeywords = []string{
	"storage-data", "storage", "uploads", "upload", "files", "file",
	"media", "assets", "attachments", "minio-data",
}

// bulkExclusions reject ephemeral and database-backed volumes even when a
// bulk keyword also matches (e.g. "cache-uploads").
var bulkExclusions = []string{
	"cache", "tmp", "temp", "logs",
	"db-data", "dbdata", "mysql", "mariadb", "postgres", "redis", "mongo",
}

// Classify determines which file-level backup strategy, if any, applies to
// a volume. Name and mount path are tested jointly; exclusion sets guard
// against engine data directories and ephemeral paths.
func Classify(v Volume) Kind {
	line := strings.ToLower(v.Name + ":" + v.Path)
	path := strings.ToLower(v.Path)

	if containsAny(line, embeddedKeywords) && !containsAny(path, embeddedPathExclusions) {
		return KindEmbeddedDB
	}
	if containsAny(line, bulkKeywords) && !containsAny(line, bulkExclusions) {
		return KindBulkStorage
	}
	return KindOther
}

// VolumeRef ties a classified volume back to its owning service role.
type VolumeRef struct {
	Service string
	Volume  Volume
}

// EmbeddedDBVolume returns the first embedded file-database volume in role
// declaration order. At most one such volume per instance is supported;
// later matches are ignored.
func (m *ServiceMap) EmbeddedDBVolume() (VolumeRef, bool) {
	for _, name := range m.Order {
		for _, v := range m.Services[name].Volumes {
			if Classify(v) == KindEmbeddedDB {
				return VolumeRef{Service: name, Volume: v}, true
			}
		}
	}
	return VolumeRef{}, false
}

// BulkVolumes returns every bulk-storage volume across all service roles,
// in declaration order.
func (m *ServiceMap) BulkVolumes() []VolumeRef {
	var refs []VolumeRef
	for _, name := range m.Order {
		for _, v := range m.Services[name].Volumes {
			if Classify(v) == KindBulkStorage {
				refs = append(refs, VolumeRef{Service: name, Volume: v})
			}
		}
	}
	return refs
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
