package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coringa/voicebot/internal/tts"
)

const demoUser = "usuario-demo"

var demoPhrases = []string{
	"Olá, tudo bem?",
	"Me conte uma piada",
	"O que você sabe fazer?",
	"Como está o tempo hoje?",
}

func newDemoCmd(a *app) *cobra.Command {
	var (
		texts      []string
		persona    string
		synthesize bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run sample phrases through generation without a voice channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.buildService(ctx, nil)
			if err != nil {
				return err
			}
			if persona != "" {
				if err := svc.SetPersona(demoUser, persona); err != nil {
					return fmt.Errorf("%w (valid: %v)", err, svc.Conversation().Catalog().Tags())
				}
			}
			var synth *tts.Chain
			if synthesize {
				synth = svc.Synthesizer()
			}

			phrases := texts
			if len(phrases) == 0 {
				phrases = demoPhrases
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "persona: %s\n", svc.Conversation().Persona(demoUser))
			for _, p := range phrases {
				fmt.Fprintf(out, "\n> %s\n", p)
				reply := svc.Reply(ctx, demoUser, p)
				if reply == "" {
					return ctx.Err()
				}
				fmt.Fprintf(out, "< %s\n", reply)
				if synth == nil {
					continue
				}
				r := synth.Synthesize(ctx, reply)
				switch {
				case r.Path == "":
					fmt.Fprintf(out, "  (no audio: %v)\n", r.Errors)
				case r.Placeholder:
					fmt.Fprintf(out, "  audio (placeholder): %s\n", r.Path)
				default:
					fmt.Fprintf(out, "  audio (%s): %s\n", r.Provider, r.Path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&texts, "text", nil, "phrase to send instead of the built-in list (repeatable)")
	cmd.Flags().StringVar(&persona, "persona", "", "persona tag for the demo user")
	cmd.Flags().BoolVar(&synthesize, "synthesize", false, "also synthesize each reply and print the artifact path")
	return cmd
}
