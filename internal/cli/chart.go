package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"trading-assistant/internal/chart"
)

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Chart overlay commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "parse <text>...",
		Short: "Extract chart commands such as SUPPORT:280.0 from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.Output(cmd)
			cmds, errs := chart.Extract(strings.Join(args, " "))

			if output.IsJSON() {
				type parsed struct {
					Kind    chart.Kind    `json:"kind"`
					Text    string        `json:"text"`
					Command chart.Command `json:"command"`
				}
				out := struct {
					Commands []parsed `json:"commands"`
					Errors   []string `json:"errors"`
				}{Commands: []parsed{}, Errors: []string{}}
				for _, c := range cmds {
					out.Commands = append(out.Commands, parsed{Kind: c.Kind(), Text: c.String(), Command: c})
				}
				for _, err := range errs {
					out.Errors = append(out.Errors, err.Error())
				}
				return output.JSON(out)
			}

			if len(cmds) == 0 && len(errs) == 0 {
				output.Dim("No chart commands found")
				return nil
			}
			for _, c := range cmds {
				output.Printf("%-10s %s\n", c.Kind(), c.String())
			}
			for _, err := range errs {
				output.Warning("%v", err)
			}
			return nil
		},
	})

	return cmd
}
