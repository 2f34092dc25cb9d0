package topology

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind names a topology generator.
type Kind string

const (
	KindBarabasiAlbert Kind = "barabasi_albert"
	KindErdosRenyi     Kind = "erdos_renyi"
	KindWattsStrogatz  Kind = "watts_strogatz"
	KindCustom         Kind = "custom"
)

// Kinds lists the generator kinds accepted by ParseKind.
var Kinds = []Kind{KindBarabasiAlbert, KindErdosRenyi, KindWattsStrogatz}

// ParseKind maps a config string to a generator kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q (valid: barabasi_albert, erdos_renyi, watts_strogatz)", ErrInvalidSpec, s)
}

// Spec describes one generator invocation. Each kind carries only the
// arguments it uses and is validated before anything is generated.
type Spec interface {
	Kind() Kind
	Params() Params
	validate() error
	build(rng randSource) *builder
}

// BarabasiAlbert grows a preferential-attachment graph: each new node links
// to M existing nodes chosen proportionally to their degree.
type BarabasiAlbert struct {
	Nodes int `validate:"min=1"`
	M     int `validate:"min=1,ltfield=Nodes"`
}

// ErdosRenyi links every pair of nodes independently with probability P.
type ErdosRenyi struct {
	Nodes int     `validate:"min=1"`
	P     float64 `validate:"gte=0,lte=1"`
}

// WattsStrogatz starts from a ring lattice where each node is joined to its
// K/2 nearest neighbors on either side and rewires each lattice edge with
// probability P.
type WattsStrogatz struct {
	Nodes int     `validate:"min=1"`
	K     int     `validate:"min=0,ltfield=Nodes"`
	P     float64 `validate:"gte=0,lte=1"`
}

func (BarabasiAlbert) Kind() Kind { return KindBarabasiAlbert }
func (ErdosRenyi) Kind() Kind     { return KindErdosRenyi }
func (WattsStrogatz) Kind() Kind  { return KindWattsStrogatz }

func (s BarabasiAlbert) Params() Params {
	return Params{intParam("n", s.Nodes), intParam("m", s.M)}
}

func (s ErdosRenyi) Params() Params {
	return Params{intParam("n", s.Nodes), floatParam("p", s.P)}
}

func (s WattsStrogatz) Params() Params {
	return Params{intParam("n", s.Nodes), intParam("k", s.K), floatParam("p", s.P)}
}

func (s BarabasiAlbert) validate() error { return validateStruct(s) }
func (s ErdosRenyi) validate() error     { return validateStruct(s) }
func (s WattsStrogatz) validate() error  { return validateStruct(s) }

// Default generator arguments, used for keys absent from a config bag.
const (
	DefaultNodes = 500
	DefaultM     = 2
	DefaultP     = 0.1
	DefaultK     = 4
)

// allowedKeys lists the bag keys each kind accepts.
var allowedKeys = map[Kind][]string{
	KindBarabasiAlbert: {"n", "m"},
	KindErdosRenyi:     {"n", "p"},
	KindWattsStrogatz:  {"n", "k", "p"},
}

// NewSpec builds a validated Spec from a loosely typed argument bag such as
// {"n": 500, "p": 0.3}. Keys the kind does not use are rejected; missing
// keys take the package defaults.
func NewSpec(kind Kind, args map[string]float64) (Spec, error) {
	keys, ok := allowedKeys[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, kind)
	}
	var unknown []string
	for k := range args {
		if !contains(keys, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s does not accept %s (valid: %s)",
			ErrInvalidSpec, kind, strings.Join(unknown, ", "), strings.Join(keys, ", "))
	}

	n, err := intArg(args, "n", DefaultNodes)
	if err != nil {
		return nil, err
	}

	var spec Spec
	switch kind {
	case KindBarabasiAlbert:
		m, err := intArg(args, "m", DefaultM)
		if err != nil {
			return nil, err
		}
		spec = BarabasiAlbert{Nodes: n, M: m}
	case KindErdosRenyi:
		spec = ErdosRenyi{Nodes: n, P: floatArg(args, "p", DefaultP)}
	case KindWattsStrogatz:
		k, err := intArg(args, "k", DefaultK)
		if err != nil {
			return nil, err
		}
		spec = WattsStrogatz{Nodes: n, K: k, P: floatArg(args, "p", DefaultP)}
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

var validate = validator.New()

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s=%v fails %s", fe.Field(), fe.Value(), constraint(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(msgs, "; "))
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func intArg(args map[string]float64, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidSpec, key, v)
	}
	return int(v), nil
}

func floatArg(args map[string]float64, key string, def float64) float64 {
	if v, ok := args[key]; ok {
		return v
	}
	return def
}

func intParam(key string, v int) Param {
	return Param{Key: key, Value: strconv.Itoa(v)}
}

func floatParam(key string, v float64) Param {
	return Param{Key: key, Value: strconv.FormatFloat(v, 'g', -1, 64)}
}

func contains(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}
