package pb

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct field names shared by server and client.
const (
	FieldUpdatedAt      = "updated_at"
	FieldChannels       = "channels"
	FieldName           = "name"
	FieldValue          = "value"
	FieldLatched        = "latched"
	FieldLow            = "low"
	FieldHigh           = "high"
	FieldChannel        = "channel"
	FieldHostname       = "hostname"
	FieldUsername       = "username"
	FieldAcknowledgedAt = "acknowledged_at"
)

// ErrMalformedMessage is returned when a Struct does not carry the expected fields.
var ErrMalformedMessage = errors.New("malformed message")

// Channel is one dashboard property pair plus its thresholds.
type Channel struct {
	// Name of the channel.
	Name string
	// Value is nil until the channel has a valid reading.
	Value *float64
	// Latched is the alarm latch.
	Latched bool
	// Low is the optional low threshold.
	Low *float64
	// High is the optional high threshold.
	High *float64
}

// Properties is the GetProperties response.
type Properties struct {
	// UpdatedAt is the time of the last change, zero if nothing was reported yet.
	UpdatedAt time.Time
	// Channels in configuration order.
	Channels []*Channel
}

// AcknowledgeRequest is the AcknowledgeAlarm request.
type AcknowledgeRequest struct {
	Channel  string
	Hostname string
	Username string
}

// AcknowledgeResponse is the AcknowledgeAlarm response.
type AcknowledgeResponse struct {
	Channel        string
	Hostname       string
	Username       string
	AcknowledgedAt time.Time
}

// GetChannel returns the channel or an empty string for a nil request.
func (r *AcknowledgeRequest) GetChannel() string {
	if r == nil {
		return ""
	}

	return r.Channel
}

// ToStruct encodes the properties.
func (p *Properties) ToStruct() (*structpb.Struct, error) {
	channels := make([]any, 0, len(p.Channels))

	for _, ch := range p.Channels {
		channels = append(channels, map[string]any{
			FieldName:    ch.Name,
			FieldValue:   optionalNumber(ch.Value),
			FieldLatched: ch.Latched,
			FieldLow:     optionalNumber(ch.Low),
			FieldHigh:    optionalNumber(ch.High),
		})
	}

	fields := map[string]any{
		FieldUpdatedAt: FormatTime(p.UpdatedAt),
		FieldChannels:  channels,
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}

	return s, nil
}

// PropertiesFromStruct decodes a GetProperties response.
func PropertiesFromStruct(s *structpb.Struct) (*Properties, error) {
	fields := s.GetFields()

	updatedAt, err := ParseTime(fields[FieldUpdatedAt])
	if err != nil {
		return nil, err
	}

	list := fields[FieldChannels].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %s is not a list", ErrMalformedMessage, FieldChannels)
	}

	result := &Properties{
		UpdatedAt: updatedAt,
		Channels:  make([]*Channel, 0, len(list.GetValues())),
	}

	for _, item := range list.GetValues() {
		entry := item.GetStructValue().GetFields()

		name := entry[FieldName].GetStringValue()
		if name == "" {
			return nil, fmt.Errorf("%w: channel without %s", ErrMalformedMessage, FieldName)
		}

		result.Channels = append(result.Channels, &Channel{
			Name:    name,
			Value:   numberOrNil(entry[FieldValue]),
			Latched: entry[FieldLatched].GetBoolValue(),
			Low:     numberOrNil(entry[FieldLow]),
			High:    numberOrNil(entry[FieldHigh]),
		})
	}

	return result, nil
}

// ToStruct encodes the request.
func (r *AcknowledgeRequest) ToStruct() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		FieldChannel:  r.Channel,
		FieldHostname: r.Hostname,
		FieldUsername: r.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("encode acknowledge request: %w", err)
	}

	return s, nil
}

// AcknowledgeRequestFromStruct decodes an AcknowledgeAlarm request. Missing fields stay empty.
func AcknowledgeRequestFromStruct(s *structpb.Struct) *AcknowledgeRequest {
	if s == nil {
		return nil
	}

	fields := s.GetFields()

	return &AcknowledgeRequest{
		Channel:  fields[FieldChannel].GetStringValue(),
		Hostname: fields[FieldHostname].GetStringValue(),
		Username: fields[FieldUsername].GetStringValue(),
	}
}

// ToStruct encodes the response.
func (r *AcknowledgeResponse) ToStruct() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		FieldChannel:        r.Channel,
		FieldHostname:       r.Hostname,
		FieldUsername:       r.Username,
		FieldAcknowledgedAt: FormatTime(r.AcknowledgedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("encode acknowledge response: %w", err)
	}

	return s, nil
}

// AcknowledgeResponseFromStruct decodes an AcknowledgeAlarm response.
func AcknowledgeResponseFromStruct(s *structpb.Struct) (*AcknowledgeResponse, error) {
	fields := s.GetFields()

	at, err := ParseTime(fields[FieldAcknowledgedAt])
	if err != nil {
		return nil, err
	}

	return &AcknowledgeResponse{
		Channel:        fields[FieldChannel].GetStringValue(),
		Hostname:       fields[FieldHostname].GetStringValue(),
		Username:       fields[FieldUsername].GetStringValue(),
		AcknowledgedAt: at,
	}, nil
}

// optionalNumber maps nil to a Struct null.
func optionalNumber(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

// numberOrNil returns nil unless the value holds a number.
func numberOrNil(v *structpb.Value) *float64 {
	number, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil
	}

	n := number.NumberValue

	return &n
}

// FormatTime renders t as RFC 3339 or null for the zero time.
// Every Struct document in the module encodes times this way.
func FormatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime is the inverse of FormatTime. Anything but a string decodes as the zero time.
func ParseTime(v *structpb.Value) (time.Time, error) {
	raw, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	return t, nil
}
