package domain

import "encoding/json"

// Collection names in the primary store
const (
	CollectionLibrary  = "library"
	CollectionHistory  = "history"
	CollectionSettings = "settings"
)

// Key paths
const (
	KeyPathID  = "id"
	KeyPathKey = "key"
)

// MediaKind values stored in mediaType
const (
	MediaKindMovie = "movie"
	MediaKindTV    = "tv"
)

// Record is the closed set of record shapes the application knows about.
// Every variant keeps the full stored field bag so fields added by newer
// versions survive a decode/encode round trip.
type Record interface {
	Collection() string
	PrimaryKey() Key
	Document() (Document, error)
}

// DecodeRecord returns the typed view of doc for the given collection.
func DecodeRecord(collection string, doc Document) (Record, error) {
	switch collection {
	case CollectionLibrary:
		r, err := DecodeLibraryRecord(doc)
		if err != nil {
			return nil, err
		}
		return r, nil
	case CollectionHistory:
		r, err := DecodeHistoryRecord(doc)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return DecodeGenericRecord(collection, KeyPathID, doc)
	}
}

// LibraryRecord is a title the user saved to their library.
type LibraryRecord struct {
	ID         Key
	TmdbID     Key // zero Key when absent
	MediaType  string
	Title      string
	PosterPath string
	AddedAt    int64 // unix millis

	fields Document
}

// DecodeLibraryRecord reads a library document. Only the key is required;
// descriptive fields with unexpected types are left zero.
func DecodeLibraryRecord(doc Document) (*LibraryRecord, error) {
	id, err := doc.Key(KeyPathID)
	if err != nil {
		return nil, err
	}
	r := &LibraryRecord{ID: id, fields: doc.Clone()}
	if raw, ok := doc["tmdbId"]; ok {
		var k Key
		if k.UnmarshalJSON(raw) == nil {
			r.TmdbID = k
		}
	}
	lenient(doc, "mediaType", &r.MediaType)
	lenient(doc, "title", &r.Title)
	lenient(doc, "posterPath", &r.PosterPath)
	lenient(doc, "addedAt", &r.AddedAt)
	return r, nil
}

func (r *LibraryRecord) Collection() string { return CollectionLibrary }
func (r *LibraryRecord) PrimaryKey() Key    { return r.ID }

// NormalizeTmdbID converts a textual numeric tmdbId to a number. Reports
// whether anything changed.
func (r *LibraryRecord) NormalizeTmdbID() bool {
	n, ok := r.TmdbID.NumericEquivalent()
	if !ok {
		return false
	}
	r.TmdbID = n
	return true
}

// Document re-encodes the record: the stored field bag with id and tmdbId
// taken from the typed fields.
func (r *LibraryRecord) Document() (Document, error) {
	doc, err := r.fields.WithKey(KeyPathID, r.ID)
	if err != nil {
		return nil, err
	}
	if r.TmdbID.Valid() {
		if doc, err = doc.WithKey("tmdbId", r.TmdbID); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// HistoryRecord is the watch progress of one movie or episode.
type HistoryRecord struct {
	ID        Key
	TmdbID    Key
	MediaType string
	Title     string
	Season    int
	Episode   int
	Progress  float64 // seconds watched
	Duration  float64 // seconds
	UpdatedAt int64   // unix millis

	fields Document
}

// DecodeHistoryRecord reads a history document.
func DecodeHistoryRecord(doc Document) (*HistoryRecord, error) {
	id, err := doc.Key(KeyPathID)
	if err != nil {
		return nil, err
	}
	r := &HistoryRecord{ID: id, fields: doc.Clone()}
	if raw, ok := doc["tmdbId"]; ok {
		var k Key
		if k.UnmarshalJSON(raw) == nil {
			r.TmdbID = k
		}
	}
	lenient(doc, "mediaType", &r.MediaType)
	lenient(doc, "title", &r.Title)
	lenient(doc, "season", &r.Season)
	lenient(doc, "episode", &r.Episode)
	lenient(doc, "progress", &r.Progress)
	lenient(doc, "duration", &r.Duration)
	lenient(doc, "updatedAt", &r.UpdatedAt)
	return r, nil
}

func (r *HistoryRecord) Collection() string { return CollectionHistory }
func (r *HistoryRecord) PrimaryKey() Key    { return r.ID }

// Fraction returns watched progress in [0,1].
func (r *HistoryRecord) Fraction() float64 {
	if r.Duration <= 0 {
		return 0
	}
	f := r.Progress / r.Duration
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

func (r *HistoryRecord) Document() (Document, error) {
	return r.fields.WithKey(KeyPathID, r.ID)
}

// GenericRecord is the passthrough variant for collections without a
// dedicated shape.
type GenericRecord struct {
	collection string
	keyPath    string
	ID         Key
	fields     Document
}

// DecodeGenericRecord wraps doc keyed by keyPath.
func DecodeGenericRecord(collection, keyPath string, doc Document) (*GenericRecord, error) {
	id, err := doc.Key(keyPath)
	if err != nil {
		return nil, err
	}
	return &GenericRecord{collection: collection, keyPath: keyPath, ID: id, fields: doc.Clone()}, nil
}

func (r *GenericRecord) Collection() string { return r.collection }
func (r *GenericRecord) PrimaryKey() Key    { return r.ID }

func (r *GenericRecord) Document() (Document, error) {
	return r.fields.WithKey(r.keyPath, r.ID)
}

// lenient decodes an optional descriptive field, ignoring type mismatches.
func lenient(doc Document, name string, dest any) {
	raw, ok := doc[name]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dest)
}
