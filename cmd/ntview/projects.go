package main

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		projects, err := result(s.stores.Projects.FetchProjects(cmd.Context()))
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), projects, projectTable(projects...))
	},
}

var projectsGetCmd = &cobra.Command{
	Use:   "get <project-id>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "project")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		p, err := result(s.stores.Projects.FetchProject(cmd.Context(), id))
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), p, projectTable(p))
	},
}

// projectFlags holds the editable project fields shared by create and
// update.
type projectFlags struct {
	name        string
	description string
	llmType     string
	llmModel    string
	llmAPIKey   string
	grafana     []string
	k8sServer   string
	k8sToken    string
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "project name")
	cmd.Flags().StringVar(&f.description, "description", "", "project description")
	cmd.Flags().StringVar(&f.llmType, "llm-type", "", "LLM provider (default "+api.DefaultLLMType+")")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "", "LLM model (default "+api.DefaultLLMModel+")")
	cmd.Flags().StringVar(&f.llmAPIKey, "llm-api-key", "", "LLM API key")
	cmd.Flags().StringSliceVar(&f.grafana, "grafana", nil, "Grafana source as name=url@token (repeatable)")
	cmd.Flags().StringVar(&f.k8sServer, "k8s-server", "", "Kubernetes API server URL")
	cmd.Flags().StringVar(&f.k8sToken, "k8s-token", "", "Kubernetes bearer token")
}

func (f *projectFlags) grafanaSources() ([]api.GrafanaSource, error) {
	sources := make([]api.GrafanaSource, 0, len(f.grafana))

	for _, raw := range f.grafana {
		src, err := parseGrafanaSource(raw)
		if err != nil {
			return nil, err
		}

		sources = append(sources, src)
	}

	return sources, nil
}

func (f *projectFlags) k8sConfig() *api.K8sConfig {
	if f.k8sServer == "" && f.k8sToken == "" {
		return nil
	}

	return &api.K8sConfig{Server: f.k8sServer, Token: f.k8sToken}
}

var createProject projectFlags

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, err := createProject.grafanaSources()
		if err != nil {
			return err
		}

		in := &api.ProjectCreate{
			Name:           createProject.name,
			GrafanaSources: sources,
			K8sConfig:      createProject.k8sConfig(),
			LLMType:        createProject.llmType,
			LLMModel:       createProject.llmModel,
		}

		if createProject.description != "" {
			in.Description = &createProject.description
		}

		if createProject.llmAPIKey != "" {
			in.LLMAPIKey = &createProject.llmAPIKey
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		p, err := s.stores.Projects.CreateProject(cmd.Context(), in)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), p, projectTable(p))
	},
}

var updateProject projectFlags

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <project-id>",
	Short: "Update the given fields of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "project")
		if err != nil {
			return err
		}

		in, err := updateProject.sparseUpdate(cmd)
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		p, err := s.stores.Projects.UpdateProject(cmd.Context(), id, in)
		if err != nil {
			return err
		}

		return render(cmd.OutOrStdout(), p, projectTable(p))
	},
}

// sparseUpdate builds an update carrying only the flags set on cmd.
func (f *projectFlags) sparseUpdate(cmd *cobra.Command) (*api.ProjectUpdate, error) {
	var in api.ProjectUpdate

	changed := cmd.Flags().Changed

	if changed("name") {
		in.Name = &f.name
	}

	if changed("description") {
		in.Description = &f.description
	}

	if changed("llm-type") {
		in.LLMType = &f.llmType
	}

	if changed("llm-model") {
		in.LLMModel = &f.llmModel
	}

	if changed("llm-api-key") {
		in.LLMAPIKey = &f.llmAPIKey
	}

	if changed("grafana") {
		sources, err := f.grafanaSources()
		if err != nil {
			return nil, err
		}

		in.GrafanaSources = &sources
	}

	if changed("k8s-server") || changed("k8s-token") {
		in.K8sConfig = f.k8sConfig()
	}

	return &in, nil
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project with its tests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "project")
		if err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}

		if err := s.stores.Projects.DeleteProject(cmd.Context(), id); err != nil {
			return err
		}

		log.WithField("project_id", id).Info("Project deleted")

		return nil
	},
}

// parseGrafanaSource parses "name=url@token". The name is optional.
func parseGrafanaSource(raw string) (api.GrafanaSource, error) {
	var src api.GrafanaSource

	rest := raw
	if name, after, ok := strings.Cut(rest, "="); ok {
		src.Name, rest = name, after
	}

	i := strings.LastIndex(rest, "@")
	if i <= 0 || i == len(rest)-1 {
		return src, fmt.Errorf("invalid grafana source %q, expected name=url@token", raw)
	}

	src.URL, src.Token = rest[:i], rest[i+1:]

	return src, nil
}

func init() {
	createProject.register(projectsCreateCmd)
	updateProject.register(projectsUpdateCmd)

	_ = projectsCreateCmd.MarkFlagRequired("name")

	projectsCmd.AddCommand(
		projectsListCmd,
		projectsGetCmd,
		projectsCreateCmd,
		projectsUpdateCmd,
		projectsDeleteCmd,
	)
	rootCmd.AddCommand(projectsCmd)
}
