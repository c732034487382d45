package normalize

import (
	"context"

	"go.uber.org/zap"

	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/resilience"
	"github.com/ummahlocal/scout-cli/pkg/geocode"
)

// Input is the raw contact data pulled off a source page.
type Input struct {
	RawAddress string
	Phone      string
	Website    string
}

// Normalized is the structured result. Coordinates is nil when geocoding
// was skipped, failed, or found no match, never a partial pair.
type Normalized struct {
	ParsedAddress
	Coordinates *model.Coordinates
	Phone       string
	Website     string
	Flags       []string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRetry overrides the geocode retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(n *Normalizer) {
		n.retry = cfg
	}
}

// WithBreaker installs a circuit breaker around geocode calls, so a
// provider outage stops burning the retry budget on every candidate.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(n *Normalizer) {
		n.breaker = cb
	}
}

// SkipGeocoding disables the geocoding call entirely; every candidate in
// the run keeps nil coordinates.
func SkipGeocoding() Option {
	return func(n *Normalizer) {
		n.skipGeocoding = true
	}
}

// Normalizer parses free-form contact data and resolves coordinates.
type Normalizer struct {
	geo           geocode.Client
	retry         resilience.RetryConfig
	breaker       *resilience.CircuitBreaker
	skipGeocoding bool
}

// New creates a Normalizer backed by the given geocoding client. A nil
// client behaves like SkipGeocoding.
func New(geo geocode.Client, opts ...Option) *Normalizer {
	n := &Normalizer{
		geo:   geo,
		retry: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.geo == nil {
		n.skipGeocoding = true
	}
	return n
}

// Normalize parses the input and geocodes the address. Geocoding failure is
// never fatal: the candidate is flagged needs_geocoding and continues
// through the pipeline with nil coordinates. An address that cannot be
// parsed into city/state is flagged unparsed_address but still returned.
func (n *Normalizer) Normalize(ctx context.Context, in Input) Normalized {
	out := Normalized{
		ParsedAddress: ParseAddress(in.RawAddress),
		Phone:         NormalizePhone(in.Phone),
		Website:       NormalizeWebsite(in.Website),
	}

	if !out.Complete() {
		out.Flags = append(out.Flags, model.FlagUnparsedAddress)
	}

	if n.skipGeocoding {
		out.Flags = append(out.Flags, model.FlagNeedsGeocoding)
		return out
	}

	coords, err := n.resolve(ctx, geocode.AddressInput{
		Street:  out.Street,
		City:    out.City,
		State:   out.State,
		ZipCode: out.ZipCode,
	})
	if err != nil {
		zap.L().Debug("normalize: geocoding failed",
			zap.String("address", in.RawAddress),
			zap.Error(err),
		)
	}
	if coords == nil {
		out.Flags = append(out.Flags, model.FlagNeedsGeocoding)
		return out
	}

	out.Coordinates = coords
	return out
}

// resolve runs the geocode call under the retry policy and, when installed,
// the circuit breaker. Returns nil coordinates on no-match.
func (n *Normalizer) resolve(ctx context.Context, addr geocode.AddressInput) (*model.Coordinates, error) {
	lookup := func(ctx context.Context) (*geocode.Result, error) {
		return resilience.DoVal(ctx, n.retry, func(ctx context.Context) (*geocode.Result, error) {
			return n.geo.Geocode(ctx, addr)
		})
	}

	var result *geocode.Result
	var err error
	if n.breaker != nil {
		result, err = resilience.ExecuteVal(ctx, n.breaker, lookup)
	} else {
		result, err = lookup(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !result.Matched {
		return nil, nil
	}

	return &model.Coordinates{
		Latitude:  result.Latitude,
		Longitude: result.Longitude,
	}, nil
}
