package core

import (
	"errors"
	"fmt"
	"sort"
)

var DefaultModel = "snowflake-arctic-instruct"

// ErrUnknownModel is returned by FindModel for unregistered names.
var ErrUnknownModel = errors.New("model not found")

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Model is a type for model name and characteristics
type Model struct {
	Name         string
	ProviderName string
	UpstreamName string
	active       bool
}

func (m *Model) String() string {
	status := ""
	if m.active {
		status = "*"
	}
	return fmt.Sprintf("%1s %-28s %-8s %s", status, m.Name, m.ProviderName, m.UpstreamName)
}

// Models is a type that manages the set of available models.
type Models struct {
	// The list of available models.
	Available map[string]*Model
}

// NewModels creates a new Models object.
func NewModels() (models *Models) {
	models = &Models{}
	models.Available = make(map[string]*Model)
	add := func(name, providerName, upstreamName string) {
		models.Available[name] = &Model{
			Name:         name,
			ProviderName: providerName,
			UpstreamName: upstreamName,
		}
	}

	add("snowflake-arctic-instruct", ProviderOpenAI, "snowflake/snowflake-arctic-instruct")
	add("arctic", ProviderOpenAI, "snowflake-arctic")
	add("gpt-3.5-turbo-instruct", ProviderOpenAI, "gpt-3.5-turbo-instruct")
	add("demo", ProviderMock, "demo")

	return
}

// FindModel returns the model name and object given a model name.
// if the given model name is empty, then use DefaultModel.
func (models *Models) FindModel(model string) (name string, m *Model, err error) {
	if model == "" {
		model = DefaultModel
	}
	m, ok := models.Available[model]
	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnknownModel, model)
		return
	}
	name = model
	return
}

// SetActive marks the named model as the one in use.
func (models *Models) SetActive(model string) (err error) {
	_, m, err := models.FindModel(model)
	if err != nil {
		return
	}
	for _, other := range models.Available {
		other.active = false
	}
	m.active = true
	return
}

// ListModels returns a list of available models sorted by provider
// name and model name.
func (models *Models) ListModels() (list []*Model) {
	for _, m := range models.Available {
		list = append(list, m)
	}
	// sort by provider name and model name
	sort.Slice(list, func(i, j int) bool {
		if list[i].ProviderName == list[j].ProviderName {
			return list[i].Name < list[j].Name
		}
		return list[i].ProviderName < list[j].ProviderName
	})
	return
}
