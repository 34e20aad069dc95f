package species

// A species name lookup collaborator. The record validators only consult it
// when one is configured; the zero-configuration default accepts any name.

// NameService answers whether a species name is known to the authoritative
// taxonomy. Implementations are injected into the validators that need them.
type NameService interface {
	// returns true if the given species name is known
	HasName(name string) (bool, error)
	// returns all known species names
	Names() ([]string, error)
}

// a NameService that knows no names and accepts all of them, used when no
// taxonomy is configured and in tests
type NoopService struct{}

func (s NoopService) HasName(name string) (bool, error) {
	return true, nil
}

func (s NoopService) Names() ([]string, error) {
	return nil, nil
}

// a NameService backed by a fixed list, handy for tests and small fixtures
type ListService struct {
	Known []string
}

func (s ListService) HasName(name string) (bool, error) {
	for _, known := range s.Known {
		if known == name {
			return true, nil
		}
	}
	return false, nil
}

func (s ListService) Names() ([]string, error) {
	return s.Known, nil
}
