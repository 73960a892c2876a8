package message

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Kind is the registered description of one message type: its stable name,
// its category, and documentation extracted from the struct definition.
// Kinds exist for tooling (the CLI lists them) and carry no weight at
// dispatch time; the bus keys purely on runtime types.
type Kind struct {
	Name        string
	Description string
	Category    Category
	Type        reflect.Type
	Fields      []string
}

// KindRegistry holds the set of registered message kinds. A process
// normally uses the package-level default; tests can build their own.
type KindRegistry struct {
	mu     sync.RWMutex
	byName map[string]Kind
	byType map[reflect.Type]Kind
}

// NewKindRegistry creates an empty kind registry.
func NewKindRegistry() *KindRegistry {
	return &KindRegistry{
		byName: make(map[string]Kind),
		byType: make(map[reflect.Type]Kind),
	}
}

var defaultKinds = NewKindRegistry()

// Kinds returns the process-wide default registry.
func Kinds() *KindRegistry { return defaultKinds }

// RegisterKind describes T in the default registry and returns its Kind.
// It panics on a duplicate name: kinds are declared at package init time,
// and a collision there is a configuration error that should stop startup.
func RegisterKind[T Message](name, description string) Kind {
	k, err := Kinds().Register(buildKind[T](name, description))
	if err != nil {
		panic(err)
	}
	return k
}

// Register adds a kind, rejecting duplicate names.
func (r *KindRegistry) Register(k Kind) (Kind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if k.Name == "" {
		return Kind{}, fmt.Errorf("message: kind name must not be empty")
	}
	if existing, ok := r.byName[k.Name]; ok {
		return Kind{}, fmt.Errorf("message: kind %q already registered for type %s", k.Name, existing.Type)
	}
	r.byName[k.Name] = k
	if k.Type != nil {
		r.byType[k.Type] = k
	}
	return k, nil
}

// Get returns a kind by name.
func (r *KindRegistry) Get(name string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.byName[name]
	return k, ok
}

// ForType returns the kind registered for a runtime message type.
func (r *KindRegistry) ForType(t reflect.Type) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, ok := r.byType[t]
	return k, ok
}

// List returns all kinds sorted by name.
func (r *KindRegistry) List() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, 0, len(r.byName))
	for _, k := range r.byName {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// buildKind reflects on T to fill in the documentation fields. Field names
// come from json tags when present, mirroring how payloads appear on the
// wire when a bridge forwards them.
func buildKind[T Message](name, description string) Kind {
	t := reflect.TypeFor[T]()
	var zero T

	k := Kind{
		Name:        name,
		Description: description,
		Category:    zero.Category(),
		Type:        t,
	}

	st := t
	if st.Kind() == reflect.Ptr {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return k
	}
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Anonymous {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		fieldName := field.Name
		if tag != "" {
			if comma := strings.IndexByte(tag, ','); comma >= 0 {
				tag = tag[:comma]
			}
			if tag != "" {
				fieldName = tag
			}
		}
		k.Fields = append(k.Fields, fieldName)
	}
	return k
}
