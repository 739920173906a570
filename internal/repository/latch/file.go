package latch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-telemetry/internal/config"
	"github.com/oshokin/alarm-telemetry/internal/domain/telemetry"
	pb "github.com/oshokin/alarm-telemetry/internal/pb/v1"
)

// Field names of the persisted document.
const (
	fieldTimestamp       = "timestamp"
	fieldLatched         = "latched"
	fieldAcknowledgement = "last_acknowledgement"
	fieldChannel         = "channel"
	fieldHostname        = "hostname"
	fieldUsername        = "username"
	fieldAt              = "at"
)

// State is the persisted latch state.
type State struct {
	// Timestamp is when the state was saved.
	Timestamp time.Time
	// Latched lists channels whose latch was set.
	Latched []string
	// LastAcknowledgement is the most recent acknowledgement, if any.
	LastAcknowledgement *telemetry.Acknowledgement
}

// Clone returns a copy that shares nothing with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	return &State{
		Timestamp:           s.Timestamp,
		Latched:             slices.Clone(s.Latched),
		LastAcknowledgement: s.LastAcknowledgement.Clone(),
	}
}

// Repository defines persistence operations for the latch state.
type Repository interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// FileRepository persists the latch state to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) of a
// google.protobuf.Struct, the same message type the dashboard API uses.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("latch state not found")
	// errMalformedState is returned when the file decodes but misses required fields.
	errMalformedState = errors.New("malformed latch state")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read latch file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode latch file: %w", err)
	}

	return fromProto(&document)
}

// Save writes the state to disk through a temporary file and a rename.
func (r *FileRepository) Save(_ context.Context, state *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := toProto(state)
	if err != nil {
		return fmt.Errorf("encode latch state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode latch state: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write latch file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace latch file: %w", err)
	}

	return nil
}

// fromProto converts the stored Struct into State.
func fromProto(document *structpb.Struct) (*State, error) {
	fields := document.GetFields()

	list := fields[fieldLatched].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s is missing", errMalformedState, fieldLatched)
	}

	state := new(State)

	for _, v := range list.GetValues() {
		if name := v.GetStringValue(); name != "" {
			state.Latched = append(state.Latched, name)
		}
	}

	slices.Sort(state.Latched)

	timestamp, err := pb.ParseTime(fields[fieldTimestamp])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedState, err)
	}

	state.Timestamp = timestamp

	if ack := fields[fieldAcknowledgement].GetStructValue(); ack != nil {
		ackFields := ack.GetFields()

		at, err := pb.ParseTime(ackFields[fieldAt])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformedState, err)
		}

		state.LastAcknowledgement = &telemetry.Acknowledgement{
			Channel: ackFields[fieldChannel].GetStringValue(),
			Actor: &telemetry.Actor{
				Hostname: ackFields[fieldHostname].GetStringValue(),
				Username: ackFields[fieldUsername].GetStringValue(),
			},
			At: at,
		}
	}

	return state, nil
}

// toProto converts State into a Struct.
func toProto(state *State) (*structpb.Struct, error) {
	latched := make([]any, 0, len(state.Latched))
	for _, name := range state.Latched {
		latched = append(latched, name)
	}

	fields := map[string]any{
		fieldTimestamp: pb.FormatTime(state.Timestamp),
		fieldLatched:   latched,
	}

	if ack := state.LastAcknowledgement; ack != nil {
		entry := map[string]any{
			fieldChannel: ack.Channel,
			fieldAt:      pb.FormatTime(ack.At),
		}

		if ack.Actor != nil {
			entry[fieldHostname] = ack.Actor.Hostname
			entry[fieldUsername] = ack.Actor.Username
		}

		fields[fieldAcknowledgement] = entry
	}

	return structpb.NewStruct(fields)
}
