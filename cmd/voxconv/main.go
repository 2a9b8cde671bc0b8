package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/voxelforge/voxconv/format"
	"github.com/voxelforge/voxconv/palette"
	"github.com/voxelforge/voxconv/scenegraph"
	"github.com/voxelforge/voxconv/utils"

	_ "github.com/voxelforge/voxconv/format/gltfvox"
	_ "github.com/voxelforge/voxconv/format/mcworld"
	_ "github.com/voxelforge/voxconv/format/qbcl"
	_ "github.com/voxelforge/voxconv/format/vpak"
	_ "github.com/voxelforge/voxconv/format/vxck"
)

func usage() {
	fmt.Println("Usage: voxconv <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  convert input output              (convert between any two registered formats)")
	fmt.Println("  convert input output fillhollow   (convert and close voxelized meshes into solids)")
	fmt.Println("  info input                        (print scene structure without converting)")
	fmt.Println("  palette input output.png          (extract the palette as a 256x1 image)")
	fmt.Println("  formats                           (list registered formats)")
	fmt.Println("  gen outdir amount [min max]       (write random noise scenes, fill % range)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		if len(os.Args) != 4 && len(os.Args) != 5 {
			usage()
			os.Exit(1)
		}
		lc := &format.LoadContext{}
		if len(os.Args) == 5 {
			if os.Args[4] != "fillhollow" {
				usage()
				os.Exit(1)
			}
			lc.FillHollow = true
		}
		if err := runConvert(os.Args[2], os.Args[3], lc); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	case "info":
		if len(os.Args) != 3 {
			usage()
			os.Exit(1)
		}
		if err := runInfo(os.Args[2]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	case "palette":
		if len(os.Args) != 4 {
			usage()
			os.Exit(1)
		}
		if err := runPalette(os.Args[2], os.Args[3]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	case "gen":
		if len(os.Args) != 4 && len(os.Args) != 6 {
			usage()
			os.Exit(1)
		}
		if err := runGen(os.Args[2:]); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
	case "formats":
		for _, f := range format.All() {
			exts := ""
			for i, e := range f.Extensions() {
				if i > 0 {
					exts += ", "
				}
				exts += "." + e
			}
			fmt.Printf("  %-10s %s\n", f.Name(), exts)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func runGen(args []string) error {
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	minPct, maxPct := 20.0, 20.0
	if len(args) == 4 {
		if minPct, err = strconv.ParseFloat(args[2], 64); err != nil {
			return fmt.Errorf("min: %w", err)
		}
		if maxPct, err = strconv.ParseFloat(args[3], 64); err != nil {
			return fmt.Errorf("max: %w", err)
		}
	}
	if err := utils.RunGenerateNoise(minPct, maxPct, amount, args[0]); err != nil {
		return err
	}
	fmt.Println("Generated", amount, "scenes in", args[0])
	return nil
}

func runConvert(in, out string, lc *format.LoadContext) error {
	a := format.NewDirArchive(".")
	g := scenegraph.New()
	if err := format.Load(in, a, g, lc); err != nil {
		return err
	}
	if err := format.Save(g, out, a, nil); err != nil {
		return err
	}
	fmt.Println("Converted", in, "->", out)
	return nil
}

func runInfo(in string) error {
	a := format.NewDirArchive(".")
	g := scenegraph.New()
	if err := format.Load(in, a, g, nil); err != nil {
		return err
	}
	g.ForEach(func(n *scenegraph.Node) {
		indent := ""
		for p := n; p.Parent() != scenegraph.UnattachedID; p = g.Node(p.Parent()) {
			indent += "  "
		}
		line := indent + strconv.Itoa(int(n.ID())) + " " + n.Type().String()
		if n.Name() != "" {
			line += " " + strconv.Quote(n.Name())
		}
		if v := n.Volume(); v != nil {
			line += " " + v.Region().String() + " voxels=" + strconv.Itoa(v.SolidCount())
		}
		if p := n.Palette(); p != nil {
			line += " colors=" + strconv.Itoa(p.ColorCount())
		}
		fmt.Println(line)
	})
	return nil
}

func runPalette(in, out string) error {
	a := format.NewDirArchive(filepath.Dir(in))
	p := palette.New()
	n, err := format.LoadPalette(filepath.Base(in), a, p, nil)
	if err != nil {
		return err
	}
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := p.EncodePNG(w); err != nil {
		return err
	}
	fmt.Println("Extracted", n, "colors ->", out)
	return nil
}
