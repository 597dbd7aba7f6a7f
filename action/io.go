package action

import (
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

const (
	InputKey  = "example-input"
	OutputKey = "example-output"

	// DefaultExampleInput replaces an absent or blank example input.
	DefaultExampleInput = "default value"
)

type Input struct {
	ExampleInput string `mapstructure:"exampleInput" json:"exampleInput,omitempty" jsonschema:"description=the value to process,default=default value"`
}

type Output struct {
	ExampleOutput string `mapstructure:"exampleOutput" json:"exampleOutput" jsonschema:"description=the processed input"`
}

// Decoder turns raw, untyped input data into an Input.
type Decoder func(raw interface{}) (Input, error)

// DecodeInput accepts nil or a map with at most an exampleInput string. Any
// other shape is rejected.
func DecodeInput(raw interface{}) (Input, error) {
	var in Input
	if raw != nil {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &in,
			ErrorUnused: true,
		})
		if err != nil {
			return Input{}, err
		}
		if err := dec.Decode(raw); err != nil {
			return Input{}, err
		}
	}
	if strings.TrimSpace(in.ExampleInput) == "" {
		in.ExampleInput = DefaultExampleInput
	}
	return in, nil
}

// Transform is the task's business logic.
func Transform(in Input) Output {
	return Output{ExampleOutput: "Processed: " + in.ExampleInput}
}

func InputSchema() *jsonschema.Schema {
	return reflectSchema(&Input{})
}

func OutputSchema() *jsonschema.Schema {
	return reflectSchema(&Output{})
}

func reflectSchema(v interface{}) *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	return r.Reflect(v)
}
