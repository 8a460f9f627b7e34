// vsfs-txn is the journal tool: "create <name>" commits a file-creation
// transaction to the journal, "install" replays every committed
// transaction into the real image and clears the journal.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/fs"
)

var img = flag.String("img", "vsfs.img", "image file")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-img file] install | create <name>\n", os.Args[0])
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	if _, err := os.Stat(*img); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *img, err)
		os.Exit(1)
	}
	d, err := disk.NewFileDisk(*img, common.TOTALBLKS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *img, err)
		os.Exit(1)
	}
	defer d.Close()

	fsys, err := fs.MkFileSys(d)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	switch flag.Arg(0) {
	case "install":
		fsys.Install()
	case "create":
		if flag.NArg() < 2 {
			usage()
			os.Exit(1)
		}
		if err := fsys.Create(flag.Arg(1)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}
