package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/happycapy/rehearsal/persona"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the available scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, _, err := loadConfig()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(conf)
		if err != nil {
			return err
		}

		title := lipgloss.NewStyle().Bold(true).Foreground(accent)
		dim := lipgloss.NewStyle().Foreground(muted)
		res := persona.NewResolver(conf.Session.Seed)
		out := cmd.OutOrStdout()
		for _, s := range catalog.Scenarios {
			fmt.Fprintf(out, "%s %s\n", title.Render(s.ID), dim.Render("("+string(s.Mode())+")"))
			fmt.Fprintf(out, "  %s: %s\n", s.Title, s.Description)
			var cast []string
			for _, m := range res.Cast(&s).Members() {
				cast = append(cast, fmt.Sprintf("%s %s, %s", m.Emoji, m.Name, m.Role))
			}
			fmt.Fprintf(out, "  %s\n\n", dim.Render(strings.Join(cast, " · ")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
