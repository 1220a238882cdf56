package pipeline_test

import (
	"context"

	"github.com/hadiudoit11/merlin/pkg/pipeline"
)

// testLogger satisfies pipeline.Logger without output noise.
type testLogger struct{}

func (testLogger) Infof(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

// stubResolver returns a fixed credential or error.
type stubResolver struct {
	cred pipeline.Credential
	err  error
}

func (r stubResolver) Resolve(userID, organizationID int64) (pipeline.Credential, error) {
	return r.cred, r.err
}

// genFunc adapts a function to pipeline.Generator.
type genFunc func(ctx context.Context, prompt string) (string, error)

func (f genFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// fixedGenerator builds a GeneratorFactory that always returns the given
// response and error.
func fixedGenerator(response string, err error) pipeline.GeneratorFactory {
	return func(cred pipeline.Credential) (pipeline.Generator, error) {
		return genFunc(func(ctx context.Context, prompt string) (string, error) {
			return response, err
		}), nil
	}
}

// stubJob is a scripted job for driver tests.
type stubJob struct {
	name   string
	result pipeline.Result
	runs   *[]string
	mutate func(jc *pipeline.Context)
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run(_ context.Context, jc *pipeline.Context) pipeline.Result {
	if j.runs != nil {
		*j.runs = append(*j.runs, j.name)
	}
	if j.mutate != nil {
		j.mutate(jc)
	}
	return j.result
}
