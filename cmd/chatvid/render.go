package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/drewmudry/chatshorts-api/internal/platform"
	"github.com/drewmudry/chatshorts-api/renders"
	"github.com/spf13/cobra"
)

var (
	renderInput   string
	renderOut     string
	renderNoPost  bool
	renderWindow  int
	renderBgCache string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a conversation file to an mp4",
	Long: `Render reads a conversation in the same JSON shape POST /renders accepts
and writes the encoded video to --out. Unless --no-post is given the
enhanced and sped-up variants are written next to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(renderInput)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		var req renders.CreateRenderRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parse input: %w", err)
		}

		cfg.Media.OutputDir = filepath.Dir(renderOut)
		if renderBgCache != "" {
			cfg.Media.BackgroundDir = renderBgCache
		}
		if cmd.Flags().Changed("window") {
			cfg.Renderer.WindowSize = renderWindow
		}
		services, err := platform.NewServices(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		id := strings.TrimSuffix(filepath.Base(renderOut), filepath.Ext(renderOut))
		res, err := services.Pipeline.Generate(ctx, id, req.Messages, req.Header())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %d steps, %d skipped, %.2fs\n", res.OutputPath, res.Steps, res.Skipped, res.Duration)

		if renderNoPost {
			return nil
		}
		post, err := services.Pipeline.PostProcess(ctx, id, res.OutputPath)
		if err != nil {
			return err
		}
		for _, w := range post.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
		}
		for _, p := range []string{post.EnhancedPath, post.SpedUpPath} {
			if p != "" {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderInput, "input", "i", "", "Conversation JSON file")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "output/video.mp4", "Output video path")
	renderCmd.Flags().BoolVar(&renderNoPost, "no-post", false, "Skip the enhance and speed-up passes")
	renderCmd.Flags().IntVar(&renderWindow, "window", 5, "Messages per snapshot, negative for the whole conversation")
	renderCmd.Flags().StringVar(&renderBgCache, "background-cache", "", "Directory for downloaded backgrounds")
	renderCmd.MarkFlagRequired("input")
}
