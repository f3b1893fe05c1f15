package cli

import "fmt"

// ListEnvironments prints the workspace environments, marking the current one
func (a *App) ListEnvironments() {
	current := a.session.CurrentEnvironment()
	envs := a.store.Environments()
	if len(envs) == 0 {
		fmt.Fprintln(a.out, "No environments")
		return
	}

	for _, env := range envs {
		marker := " "
		if env.ID == current {
			marker = "*"
		}
		name := env.Name
		if name == "" {
			name = env.ID
		}

		fmt.Fprintf(a.out, "%s %-16s %-24s %d variables, %d dynamic\n",
			marker, env.ID, name, len(env.Variables), len(env.DynamicVariables))
	}
}

// UseEnvironment selects id as the current environment. An empty id clears
// the selection.
func (a *App) UseEnvironment(id string) error {
	if id != "" {
		if _, err := a.store.GetEnvironment(id); err != nil {
			return err
		}
	}
	if err := a.session.SetCurrentEnvironment(id); err != nil {
		return err
	}
	if id == "" {
		fmt.Fprintln(a.out, "Current environment cleared")
	} else {
		fmt.Fprintf(a.out, "Current environment: %s\n", id)
	}
	return nil
}
