// Package normalize maps untrusted source records onto the canonical schema.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/okian/catalogd/internal/domain/model"
)

// Reason classifies why a raw record was rejected.
type Reason string

const (
	ReasonMissingID        Reason = "missing_id"
	ReasonMissingName      Reason = "missing_name"
	ReasonNonPositivePrice Reason = "non_positive_price"
	ReasonMalformedField   Reason = "malformed_field"
)

const defaultMinorUnits = 100

// Rejection is returned instead of a record when a raw record cannot be
// normalized. It is an error so callers can use errors.As.
type Rejection struct {
	Reason Reason
	Field  string
	Detail string
}

func (r *Rejection) Error() string {
	if r.Field == "" {
		return "rejected: " + string(r.Reason)
	}
	if r.Detail == "" {
		return fmt.Sprintf("rejected: %s (%s)", r.Reason, r.Field)
	}
	return fmt.Sprintf("rejected: %s (%s: %s)", r.Reason, r.Field, r.Detail)
}

// Fields names the source keys the normalizer reads.
type Fields struct {
	ID        string
	Name      string
	Price     string
	SalePrice string
	Rating    string
	Reviews   string
}

// DefaultFields matches the Wildberries search payload.
var DefaultFields = Fields{ //nolint:gochecknoglobals // read-only default
	ID:        "id",
	Name:      "name",
	Price:     "priceU",
	SalePrice: "salePriceU",
	Rating:    "rating",
	Reviews:   "feedbacks",
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithFields overrides the source key names.
func WithFields(f Fields) Option {
	return func(n *Normalizer) { n.fields = f }
}

// WithMinorUnits sets how many minor units make one major currency unit.
func WithMinorUnits(units float64) Option {
	return func(n *Normalizer) {
		if units > 0 {
			n.minorUnits = units
		}
	}
}

// Normalizer is stateless once built and safe for concurrent use.
type Normalizer struct {
	fields     Fields
	minorUnits float64
}

// New creates a Normalizer for the Wildberries payload shape.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{fields: DefaultFields, minorUnits: defaultMinorUnits}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var std = New() //nolint:gochecknoglobals // stateless default instance

// Normalize uses the default Normalizer.
func Normalize(raw model.RawRecord, categoryTag string) (model.CanonicalRecord, error) {
	return std.Normalize(raw, categoryTag)
}

// Normalize converts raw into a canonical record tagged with categoryTag.
// A non-nil error is always a *Rejection and the record is then zero.
func (n *Normalizer) Normalize(raw model.RawRecord, categoryTag string) (rec model.CanonicalRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec = model.CanonicalRecord{}
			err = &Rejection{Reason: ReasonMalformedField, Detail: fmt.Sprint(p)}
		}
	}()

	id, err := n.externalID(raw)
	if err != nil {
		return model.CanonicalRecord{}, err
	}

	name, err := n.name(raw)
	if err != nil {
		return model.CanonicalRecord{}, err
	}

	list, _, err := n.price(raw, n.fields.Price)
	if err != nil {
		return model.CanonicalRecord{}, err
	}
	if list <= 0 {
		return model.CanonicalRecord{}, &Rejection{Reason: ReasonNonPositivePrice, Field: n.fields.Price}
	}

	var discounted *float64
	sale, ok, err := n.price(raw, n.fields.SalePrice)
	if err != nil {
		return model.CanonicalRecord{}, err
	}
	switch {
	case ok && sale < 0:
		return model.CanonicalRecord{}, &Rejection{Reason: ReasonMalformedField, Field: n.fields.SalePrice, Detail: "negative"}
	case ok && sale != 0:
		discounted = &sale
	}

	rating, err := n.rating(raw)
	if err != nil {
		return model.CanonicalRecord{}, err
	}

	reviews, err := n.reviews(raw)
	if err != nil {
		return model.CanonicalRecord{}, err
	}

	return model.CanonicalRecord{
		ExternalID:      id,
		Name:            name,
		ListPrice:       list,
		DiscountedPrice: discounted,
		Rating:          rating,
		ReviewCount:     reviews,
		CategoryTag:     strings.TrimSpace(categoryTag),
	}, nil
}

func (n *Normalizer) externalID(raw model.RawRecord) (string, error) {
	v, ok := raw[n.fields.ID]
	if !ok || v == nil {
		return "", &Rejection{Reason: ReasonMissingID, Field: n.fields.ID}
	}

	var id string
	switch t := v.(type) {
	case string:
		id = strings.TrimSpace(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			id = strconv.FormatInt(i, 10)
		} else {
			id = t.String()
		}
	case float64:
		id = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		id = strconv.Itoa(t)
	case int64:
		id = strconv.FormatInt(t, 10)
	default:
		return "", &Rejection{Reason: ReasonMalformedField, Field: n.fields.ID, Detail: fmt.Sprintf("unexpected type %T", v)}
	}

	if id == "" {
		return "", &Rejection{Reason: ReasonMissingID, Field: n.fields.ID}
	}
	return id, nil
}

func (n *Normalizer) name(raw model.RawRecord) (string, error) {
	v, ok := raw[n.fields.Name]
	if !ok || v == nil {
		return "", &Rejection{Reason: ReasonMissingName, Field: n.fields.Name}
	}
	s, ok := v.(string)
	if !ok {
		return "", &Rejection{Reason: ReasonMalformedField, Field: n.fields.Name, Detail: fmt.Sprintf("unexpected type %T", v)}
	}
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return "", &Rejection{Reason: ReasonMissingName, Field: n.fields.Name}
	}
	return s, nil
}

// price reads a minor-unit amount. ok is false when the key is absent or null.
func (n *Normalizer) price(raw model.RawRecord, key string) (float64, bool, error) {
	v, present := raw[key]
	if !present || v == nil {
		return 0, false, nil
	}
	f, ok := number(v)
	if !ok {
		return 0, false, &Rejection{Reason: ReasonMalformedField, Field: key, Detail: fmt.Sprintf("not a number: %v", v)}
	}
	return f / n.minorUnits, true, nil
}

func (n *Normalizer) rating(raw model.RawRecord) (*float64, error) {
	v, present := raw[n.fields.Rating]
	if !present || v == nil {
		return nil, nil
	}
	f, ok := number(v)
	if !ok {
		return nil, &Rejection{Reason: ReasonMalformedField, Field: n.fields.Rating, Detail: fmt.Sprintf("not a number: %v", v)}
	}
	return &f, nil
}

func (n *Normalizer) reviews(raw model.RawRecord) (int, error) {
	v, present := raw[n.fields.Reviews]
	if !present || v == nil {
		return 0, nil
	}
	f, ok := number(v)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, &Rejection{Reason: ReasonMalformedField, Field: n.fields.Reviews, Detail: fmt.Sprintf("not a count: %v", v)}
	}
	return int(f), nil
}

// number accepts the numeric shapes a JSON decoder can produce.
func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
