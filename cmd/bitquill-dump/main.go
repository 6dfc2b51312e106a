// Copyright (c) 2025-2026 The BitQuill developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command bitquill-dump inspects a bitquilld leveldb data directory:
// listing stored documents, dumping one document's leaves, and
// re-verifying a document's full leaf chain. Verification reuses
// editlog.Deserialize, which re-checks every invariant on load.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"

	"github.com/bitquill/provenance/internal/config"
	"github.com/bitquill/provenance/internal/store"
	"github.com/bitquill/provenance/pkg/analyzer"
	"github.com/bitquill/provenance/pkg/anchor"
	"github.com/bitquill/provenance/pkg/delta"
	"github.com/bitquill/provenance/pkg/difficulty"
	"github.com/bitquill/provenance/pkg/editlog"
)

var (
	dataDir = flag.String("datadir", "", "leveldb data directory, defaults to the daemon's configured datadir")
	docID   = flag.String("id", "", "document id to dump; if empty, lists every stored document id")
	verify  = flag.Bool("verify", false, "re-verify the document's leaf chain instead of dumping it")
	dumpRaw = flag.Bool("raw", false, "print the raw serialized bytes instead of a spew dump")
)

func _main() error {
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		dir = filepath.Join(config.DefaultHomeDir, "data")
	}

	st, err := store.Open(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer st.Close()

	if *docID == "" {
		ids, err := st.List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	data, ok, err := st.Get(*docID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no document %q in %s", *docID, dir)
	}

	if *dumpRaw {
		_, err := os.Stdout.Write(data)
		return err
	}

	anchorCli := anchor.NewClient(&anchor.HTTPCalendar{BaseURL: "http://unused.invalid"}, anchor.DefaultBackoff())
	l, err := editlog.Deserialize(context.Background(), data, delta.QuillComposer{}, analyzer.DefaultConfig(), difficulty.DefaultConfig(), anchorCli)
	if err != nil {
		return fmt.Errorf("document %q failed re-verification: %w", *docID, err)
	}

	if *verify {
		fmt.Printf("document %q: %d leaves, root %s, chain verified OK\n", *docID, l.Len(), l.Root())
		return nil
	}

	for i := 0; i < l.Len(); i++ {
		leaf, err := l.Leaf(i)
		if err != nil {
			return err
		}
		spew.Dump(leaf)
	}
	return nil
}

func main() {
	if err := _main(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
