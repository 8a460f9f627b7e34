// vsfs-mkfs creates a fresh VSFS image with the compiled-in geometry.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/mkfs"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [image]\n", os.Args[0])
	}
	flag.Parse()
	path := "vsfs.img"
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}

	d, err := disk.NewFileDisk(path, common.TOTALBLKS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}
	mkfs.Mkfs(d)
	d.Close()
	fmt.Printf("Created VSFS image '%s' (%d blocks).\n", path, common.TOTALBLKS)
}
