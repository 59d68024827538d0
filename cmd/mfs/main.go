package main

import (
	"fmt"
	stdio "io"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	yaml "gopkg.in/yaml.v2"

	"github.com/multios/mfs/pkg/device"
	"github.com/multios/mfs/pkg/fs"
	. "github.com/multios/mfs/pkg/types"
)

type env struct {
	Image    string `envconfig:"IMAGE"`
	UID      uint32 `envconfig:"UID" default:"0"`
	GID      uint32 `envconfig:"GID" default:"0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warning"`
}

// formatProfile is the YAML shape accepted by `format --profile`.
type formatProfile struct {
	TotalBlocks    uint32   `yaml:"total_blocks"`
	InodesPerGroup uint32   `yaml:"inodes_per_group"`
	JournalBlocks  uint32   `yaml:"journal_blocks"`
	MaxMountCount  uint16   `yaml:"max_mount_count"`
	ReservedPct    uint16   `yaml:"reserved_pct"`
	Label          string   `yaml:"label"`
	Features       []string `yaml:"features"`
}

var featureNames = map[string]Features{
	"journaling": FeatureJournaling,
	"indexing":   FeatureIndexing,
	"security":   FeatureSecurity,
	"largefiles": FeatureLargeFiles,
	"attributes": FeatureAttributes,
	"acl":        FeatureACL,
}

func main() {
	var e env
	if err := envconfig.Process("mfs", &e); err != nil {
		logrus.Fatalf("reading environment: %v", err)
	}
	level, err := logrus.ParseLevel(e.LogLevel)
	if err != nil {
		logrus.Fatalf("parsing MFS_LOG_LEVEL: %v", err)
	}
	logrus.SetLevel(level)

	imageFlag := &cli.StringFlag{
		Name:    "image",
		Usage:   "path to the volume image",
		Value:   e.Image,
		Aliases: []string{"i"},
	}

	app := cli.App{
		Name:        "mfs",
		Description: "inspect and manipulate MFS volume images",
		Commands: []*cli.Command{{
			Name:        "format",
			Description: "initialize an empty file system on an image",
			Flags: []cli.Flag{
				imageFlag,
				&cli.Uint64Flag{
					Name:  "blocks",
					Usage: "volume size in 4096-byte blocks",
				},
				&cli.Uint64Flag{
					Name:  "journal-blocks",
					Usage: "journal region size in blocks",
				},
				&cli.StringFlag{
					Name:  "label",
					Usage: "volume label (up to 16 bytes)",
				},
				&cli.StringFlag{
					Name:  "profile",
					Usage: "YAML format profile",
				},
			},
			Action: formatAction,
		}, {
			Name:        "info",
			Description: "print the volume's counters and state",
			Flags:       []cli.Flag{imageFlag},
			Action: withMount(&e, func(h *fs.FileSystem, ctx *cli.Context) error {
				stats, err := h.Stats()
				if err != nil {
					return err
				}
				fmt.Printf("label:        %s\n", stats.VolumeLabel)
				fmt.Printf("blocks:       %d (%d free)\n", stats.TotalBlocks, stats.FreeBlocks)
				fmt.Printf("inodes:       %d (%d free)\n", stats.TotalInodes, stats.FreeInodes)
				fmt.Printf("groups:       %d\n", stats.GroupCount)
				fmt.Printf("mounts:       %d\n", stats.MountCount)
				fmt.Printf("journal seq:  %d\n", stats.JournalSequence)
				fmt.Printf("state:        %s\n", stats.State)
				return nil
			}),
		}, {
			Name: "check",
			Description: "mount the image (replaying the journal and " +
				"running the integrity scan if due) and report the result",
			Flags:  []cli.Flag{imageFlag},
			Action: checkAction,
		}, {
			Name:        "ls",
			Description: "list a directory",
			Flags:       []cli.Flag{imageFlag},
			Action: withMount(&e, func(h *fs.FileSystem, ctx *cli.Context) error {
				path := ctx.Args().First()
				if path == "" {
					path = "/"
				}
				stat, err := h.StatPath(path)
				if err != nil {
					return err
				}
				infos, err := h.ReadDir(stat.Ino)
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Printf("%8d  %-7s  %s\n", info.Ino, info.FileType, info.Name)
				}
				return nil
			}),
		}, {
			Name:        "cat",
			Description: "write a file's contents to stdout",
			Flags:       []cli.Flag{imageFlag},
			Action: withMount(&e, func(h *fs.FileSystem, ctx *cli.Context) error {
				if ctx.Args().Len() != 1 {
					return fmt.Errorf("usage: mfs cat <path>")
				}
				return catFile(h, ctx.Args().First(), os.Stdout)
			}),
		}, {
			Name:        "write",
			Description: "write stdin to a file, creating or truncating it",
			Flags:       []cli.Flag{imageFlag},
			Action: withMount(&e, func(h *fs.FileSystem, ctx *cli.Context) error {
				if ctx.Args().Len() != 1 {
					return fmt.Errorf("usage: mfs write <path>")
				}
				return writeFile(h, ctx.Args().First(), os.Stdin)
			}),
		}, {
			Name:        "import",
			Description: "copy a local file into the image",
			Flags:       []cli.Flag{imageFlag},
			Action: withMount(&e, func(h *fs.FileSystem, ctx *cli.Context) error {
				if ctx.Args().Len() != 2 {
					return fmt.Errorf("usage: mfs import <local path> <image path>")
				}
				f, err := os.Open(ctx.Args().Get(0))
				if err != nil {
					return err
				}
				defer f.Close()
				return writeFile(h, ctx.Args().Get(1), f)
			}),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func formatAction(ctx *cli.Context) error {
	image := ctx.String("image")
	if image == "" {
		return fmt.Errorf("no image given (flag --image or MFS_IMAGE)")
	}

	opts := fs.FormatOptions{
		TotalBlocks:   Block(ctx.Uint64("blocks")),
		JournalBlocks: Block(ctx.Uint64("journal-blocks")),
		Label:         ctx.String("label"),
	}
	if profile := ctx.String("profile"); profile != "" {
		data, err := os.ReadFile(profile)
		if err != nil {
			return fmt.Errorf("reading profile: %w", err)
		}
		var p formatProfile
		if err := yaml.UnmarshalStrict(data, &p); err != nil {
			return fmt.Errorf("parsing profile: %w", err)
		}
		if err := applyProfile(&opts, &p); err != nil {
			return err
		}
	}
	if opts.TotalBlocks == 0 {
		return fmt.Errorf("no size given (flag --blocks or profile total_blocks)")
	}

	dev, err := device.CreateFile(image, opts.TotalBlocks)
	if err != nil {
		return err
	}
	defer dev.Close()
	return fs.Format(dev, opts)
}

func applyProfile(opts *fs.FormatOptions, p *formatProfile) error {
	if opts.TotalBlocks == 0 {
		opts.TotalBlocks = Block(p.TotalBlocks)
	}
	if opts.JournalBlocks == 0 {
		opts.JournalBlocks = Block(p.JournalBlocks)
	}
	if opts.Label == "" {
		opts.Label = p.Label
	}
	opts.InodesPerGroup = Ino(p.InodesPerGroup)
	opts.MaxMountCount = p.MaxMountCount
	opts.ReservedPct = p.ReservedPct
	for _, name := range p.Features {
		bit, known := featureNames[name]
		if !known {
			return fmt.Errorf("profile names unknown feature `%s`", name)
		}
		opts.Features |= bit
	}
	return nil
}

func checkAction(ctx *cli.Context) error {
	image := ctx.String("image")
	if image == "" {
		return fmt.Errorf("no image given (flag --image or MFS_IMAGE)")
	}
	dev, err := device.OpenFile(image)
	if err != nil {
		return err
	}
	defer dev.Close()
	handle, err := fs.Mount(dev, fs.MountOptions{})
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	stats, err := handle.Stats()
	if err != nil {
		return err
	}
	if err := handle.Unmount(); err != nil {
		return err
	}
	fmt.Printf(
		"clean: %d/%d blocks free, %d/%d inodes free\n",
		stats.FreeBlocks,
		stats.TotalBlocks,
		stats.FreeInodes,
		stats.TotalInodes,
	)
	return nil
}

// withMount opens the image, mounts it for the duration of the action,
// and unmounts afterwards.
func withMount(
	e *env,
	action func(h *fs.FileSystem, ctx *cli.Context) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		image := ctx.String("image")
		if image == "" {
			return fmt.Errorf("no image given (flag --image or MFS_IMAGE)")
		}
		dev, err := device.OpenFile(image)
		if err != nil {
			return err
		}
		defer dev.Close()
		handle, err := fs.Mount(dev, fs.MountOptions{UID: e.UID, GID: e.GID})
		if err != nil {
			return err
		}
		if err := action(handle, ctx); err != nil {
			_ = handle.Unmount()
			return err
		}
		return handle.Unmount()
	}
}

func catFile(h *fs.FileSystem, path string, w stdio.Writer) error {
	fd, err := h.Open(path, fs.OpenRead)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(fd) }()
	buf := make([]byte, 64*1024)
	for {
		n, err := h.Read(fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func writeFile(h *fs.FileSystem, path string, r stdio.Reader) error {
	fd, err := h.Open(
		path,
		fs.OpenWrite|fs.OpenCreate|fs.OpenTruncate,
	)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close(fd) }()
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := h.Write(fd, buf[:n]); werr != nil {
				return werr
			}
		}
		if err == stdio.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
