package domain

// TransportMode selects the wire codec used to talk to a deployed index endpoint.
type TransportMode string

const (
	// TransportJSON sends search requests as JSON.
	TransportJSON TransportMode = "json"
	// TransportMsgpack sends search requests as msgpack.
	TransportMsgpack TransportMode = "msgpack"
)

// Model is a trained embedding model registration. Immutable once created.
type Model struct {
	Name         string
	AdminOnly    bool
	EmbeddingDim int
	IsDefault    bool
	SchemaName   string
	Dataset      string // warehouse dataset holding the model's cell metadata
	CreatedAt    int64  // unix millis
}

// Index is a deployed vector search index bound to exactly one model.
type Index struct {
	ModelName    string
	Transport    TransportMode
	NumNeighbors int
	Endpoint     string
	DeployedID   string
}

// User is an authenticated caller with cumulative usage counters.
// Counters are mutated only by usage recording.
type User struct {
	ID                int64
	Email             string
	Active            bool
	Admin             bool
	CellsProcessed    int64
	RequestsProcessed int64
}

// ActivityRecord is one appended usage entry.
type ActivityRecord struct {
	UserID    int64
	ModelName string
	Method    string
	CellCount int
	Finished  int64 // unix millis
}

// QueryableFeatures is the whitelist of cell metadata columns a caller may request.
// CellIDColumn is always included implicitly.
var QueryableFeatures = map[string]struct{}{
	"cell_type":         {},
	"assay":             {},
	"dataset_id":        {},
	"development_stage": {},
	"disease":           {},
	"organism":          {},
	"sex":               {},
	"tissue":            {},
}

// CellIDColumn is the implicit identifier column of the cell metadata table.
const CellIDColumn = "cas_cell_index"
