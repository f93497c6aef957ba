package index

// DayIndex defines the interface for day indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type DayIndex interface {
	UpsertDay(d DayRow, body string) error
	DeleteDay(path string) error
	GetChecksum(path string) (string, error)
	GetDay(path string) (*DayRow, error)
	ListDays(from, to string) ([]DayRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies DayIndex at compile time.
var _ DayIndex = (*DB)(nil)
