// rgbinfo inspects raw RGB dumps written by the renderer.
package main

import (
	"bufio"
	"fmt"
	"os"

	"row-major/raytracer/rgbimage"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/prototext"
)

var cmdRoot = &cobra.Command{
	Use: "rgbinfo",
}

var cmdHeader = &cobra.Command{
	Use:   "header FILE...",
	Short: "Print the header of each raw dump as text protobuf",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			f, err := os.Open(name)
			if err != nil {
				return fmt.Errorf("while opening %s: %w", name, err)
			}

			hdr, err := rgbimage.ReadHeader(bufio.NewReader(f))
			f.Close()
			if err != nil {
				return fmt.Errorf("while reading header of %s: %w", name, err)
			}

			if len(args) > 1 {
				fmt.Printf("# %s\n", name)
			}
			fmt.Println(prototext.Format(hdr))
		}
		return nil
	},
}

var pngOverwrite bool

func init() {
	cmdPNG.Flags().BoolVar(&pngOverwrite, "overwrite", false, "Replace OUT if it exists.")
}

var cmdPNG = &cobra.Command{
	Use:   "png IN OUT",
	Short: "Convert a raw dump to PNG",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		im, err := rgbimage.ReadRGBImageFromFile(args[0])
		if err != nil {
			return fmt.Errorf("while reading %s: %w", args[0], err)
		}

		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if pngOverwrite {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		out, err := os.OpenFile(args[1], flags, 0644)
		if err != nil {
			return fmt.Errorf("while creating %s: %w", args[1], err)
		}

		if err := rgbimage.WritePNG(im, out); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("while closing %s: %w", args[1], err)
		}

		glog.Infof("Wrote %dx%d image to %s", im.ColSize, im.RowSize, args[1])
		return nil
	},
}

func main() {
	glog.CopyStandardLogTo("INFO")
	defer glog.Flush()

	cmdRoot.AddCommand(cmdHeader, cmdPNG)

	if err := cmdRoot.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}
