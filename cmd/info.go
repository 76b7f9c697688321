package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [photo-id]",
	Short: "Print the stored metadata for one photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid photo id %q", args[0])
	}

	c, _, err := openCorpus(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := c.Store.GetInfo(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("ID:        %d\n", p.ID)
	fmt.Printf("Source:    %s\n", p.SourceRef)
	if p.ThumbnailRef != "" {
		fmt.Printf("Thumbnail: %s\n", p.ThumbnailRef)
	}
	fmt.Printf("Uploaded:  %s\n", p.UploadedAt)
	if p.TakenAt != nil {
		fmt.Printf("Taken:     %s\n", *p.TakenAt)
	}
	if p.GPSLat != nil && p.GPSLon != nil {
		fmt.Printf("GPS:       %.6f, %.6f\n", *p.GPSLat, *p.GPSLon)
	}
	if p.LocationName != nil {
		fmt.Printf("Location:  %s\n", *p.LocationName)
	}
	if p.Metadata != "" {
		fmt.Printf("Metadata:  %s\n", p.Metadata)
	}
	return nil
}
