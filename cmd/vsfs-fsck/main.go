// vsfs-fsck validates an image's structural invariants and reports every
// violation. It never modifies the image and never looks at the journal,
// so uninstalled transactions are invisible to it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/fsck"
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

	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}
	d, err := disk.NewFileDisk(path, common.TOTALBLKS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}

	ck := fsck.MkChecker(d, os.Stderr)
	n := ck.Check()
	d.Close()

	if n == 0 {
		fmt.Printf("Filesystem '%s' is consistent.\n", path)
		return
	}
	fmt.Fprintf(os.Stderr, "%d inconsistencies found.\n", n)
	os.Exit(1)
}
