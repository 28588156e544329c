package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/contentbuddy/contentbuddy/internal/api"
	"github.com/contentbuddy/contentbuddy/internal/audio"
	"github.com/contentbuddy/contentbuddy/internal/client"
	"github.com/contentbuddy/contentbuddy/internal/export"
	"github.com/contentbuddy/contentbuddy/internal/project"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		avatarPath   string
		skipSubtitle bool
		wait         bool
		download     string
	)
	cmd := &cobra.Command{
		Use:   "export <project.json>",
		Short: "Send a generated project to AutoVideoMaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadProject(args[0])
			if err != nil {
				return err
			}
			avatar, err := os.Open(avatarPath)
			if err != nil {
				return fmt.Errorf("open avatar video: %w", err)
			}
			defer avatar.Close()

			job, err := a.client.Export(cmd.Context(), client.ExportUpload{
				Script:       state.Script,
				Segments:     exportSegments(state),
				AvatarName:   filepath.Base(avatarPath),
				Avatar:       avatar,
				SkipSubtitle: skipSubtitle,
			})
			if err != nil {
				return err
			}
			a.printf("job %s %s (folder %s)\n", job.JobID, job.Status, job.FolderPath)
			if !wait && download == "" {
				return nil
			}

			final, err := a.client.WaitExport(cmd.Context(), job.JobID, client.DefaultPollInterval, func(s api.ExportStatusResponse) {
				msg := s.Message
				if msg == "" {
					msg = s.Error
				}
				a.printf("  %s %s\n", s.Status, msg)
			})
			if err != nil {
				return err
			}
			if final.Status == export.StatusFailed {
				return fmt.Errorf("export failed: %s", final.Error)
			}
			a.printf("output %s\n", final.OutputFilePath)
			if download == "" {
				return nil
			}
			out, err := os.Create(download)
			if err != nil {
				return err
			}
			n, err := a.client.Download(cmd.Context(), final.OutputFilePath, out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("download video: %w", err)
			}
			a.printf("downloaded %d bytes to %s\n", n, download)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&avatarPath, "avatar", "", "Avatar video file")
	f.BoolVar(&skipSubtitle, "skip-subtitle", false, "Ask AutoVideoMaker not to burn subtitles")
	f.BoolVar(&wait, "wait", false, "Poll until the job completes or fails")
	f.StringVar(&download, "download", "", "Download the finished video to this path (implies --wait)")
	_ = cmd.MarkFlagRequired("avatar")

	status := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Print the status of an export job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.ExportStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.printf("%s %s %s %s\n", s.Status, s.OutputFilePath, s.Message, s.Error)
			return nil
		},
	}
	cmd.AddCommand(status)
	return cmd
}

func exportSegments(state project.State) []export.SegmentAsset {
	out := make([]export.SegmentAsset, 0, len(state.Segments))
	for _, seg := range state.Segments {
		assets := state.AssetsFor(seg.ID)
		asset := export.SegmentAsset{ID: seg.ID, Text: seg.Text}
		if assets.ImageURL != nil {
			asset.ImageURL = *assets.ImageURL
		}
		if assets.AudioURL != nil {
			asset.AudioURL = *assets.AudioURL
		}
		out = append(out, asset)
	}
	return out
}

func projectClips(state project.State) []audio.Clip {
	clips := make([]audio.Clip, 0, len(state.Segments))
	for _, seg := range state.Segments {
		clip := audio.Clip{ID: seg.ID}
		if u := state.AssetsFor(seg.ID).AudioURL; u != nil {
			clip.URL = *u
		}
		clips = append(clips, clip)
	}
	return clips
}

func newAudioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Combine a project's narration clips",
	}
	var mergeOut, zipOut string
	merge := &cobra.Command{
		Use:   "merge <project.json>",
		Short: "Merge every clip into one WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadProject(args[0])
			if err != nil {
				return err
			}
			merged, err := a.client.MergeAudio(cmd.Context(), projectClips(state))
			if err != nil {
				return err
			}
			data, _, err := audio.DecodeDataURI(merged.AudioURL)
			if err != nil {
				return err
			}
			if err := os.WriteFile(mergeOut, data, 0o644); err != nil {
				return err
			}
			state = project.Reduce(state, project.SetMergedAudio{URL: merged.AudioURL, Duration: merged.Duration})
			a.printf("wrote %s (%.2fs)\n", mergeOut, merged.Duration)
			return saveProject(args[0], state)
		},
	}
	merge.Flags().StringVarP(&mergeOut, "out", "o", "merged.wav", "Output WAV path")

	zip := &cobra.Command{
		Use:   "zip <project.json>",
		Short: "Download every clip as a ZIP archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := loadProject(args[0])
			if err != nil {
				return err
			}
			data, err := a.client.ZipAudio(cmd.Context(), projectClips(state))
			if err != nil {
				return err
			}
			if err := os.WriteFile(zipOut, data, 0o644); err != nil {
				return err
			}
			a.printf("wrote %s (%d bytes)\n", zipOut, len(data))
			return nil
		},
	}
	zip.Flags().StringVarP(&zipOut, "out", "o", "audio_segments.zip", "Output ZIP path")

	cmd.AddCommand(merge, zip)
	return cmd
}

func newStylesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List visual styles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			styles, err := a.client.Styles(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range styles {
				a.printf("%-26s %s\n", s.ID, s.Label)
			}
			return nil
		},
	}
}
