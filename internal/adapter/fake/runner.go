package fake

import "context"

// Runner is a scripted process runner. Calls are recorded under "Run" with
// args (dir, name, []string{args...}).
type Runner struct {
	CallRecorder

	Stdout string
	Stderr string
	Err    error
	// RunFunc, when set, replaces the scripted output.
	RunFunc func(ctx context.Context, dir, name string, args ...string) (string, string, error)
}

func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	r.record("Run", dir, name, append([]string(nil), args...))
	if r.RunFunc != nil {
		return r.RunFunc(ctx, dir, name, args...)
	}
	return r.Stdout, r.Stderr, r.Err
}
