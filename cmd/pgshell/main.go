// Command pgshell is an interactive inspector for pagestore data files. It
// opens a page file and lets an operator poke at individual pages from a
// readline-driven prompt; it never writes anything a caller didn't
// explicitly ask it to.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"pagestore"
)

func formatHeader(h pagestore.PageHeader, w io.Writer) {
	writer := tablewriter.NewWriter(w)
	writer.SetHeader([]string{"field", "value"})
	writer.Append([]string{"kind", h.Kind.String()})
	writer.Append([]string{"item_count", strconv.Itoa(int(h.ItemCount))})
	writer.Append([]string{"free_space_offset", strconv.Itoa(int(h.FreeSpaceOffset))})
	writer.Append([]string{"page_id", strconv.Itoa(int(h.PageID))})
	writer.Append([]string{"parent_id", strconv.Itoa(int(h.ParentID))})
	writer.Append([]string{"next_page", strconv.Itoa(int(h.NextPage))})
	writer.Append([]string{"prev_page", strconv.Itoa(int(h.PrevPage))})
	writer.Append([]string{"checksum", fmt.Sprintf("0x%08x", h.Checksum)})
	writer.Render()
}

func dispatch(pager *pagestore.Pager, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <id>")
		}
		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return err
		}
		page, err := pager.Get(pagestore.PageIdentifier(id))
		if err != nil {
			return err
		}
		formatHeader(page.Header(), os.Stdout)
		return nil

	case "dump":
		if len(fields) != 4 {
			return fmt.Errorf("usage: dump <id> <offset> <len>")
		}
		id, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return err
		}
		offset, err := strconv.Atoi(fields[2])
		if err != nil {
			return err
		}
		length, err := strconv.Atoi(fields[3])
		if err != nil {
			return err
		}
		page, err := pager.Get(pagestore.PageIdentifier(id))
		if err != nil {
			return err
		}
		view, err := page.Read(offset, length)
		if err != nil {
			return err
		}
		fmt.Println(hex.Dump(view))
		return nil

	case "stats":
		stats := pager.CacheStats()
		fmt.Printf("hits=%d misses=%d evictions=%d\n", stats.Hits, stats.Misses, stats.Evictions)
		return nil

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try: get, dump, stats, quit)", fields[0])
	}
}

var errQuit = fmt.Errorf("quit")

func main() {
	path := flag.String("file", "", "path to a pagestore data file")
	direct := flag.Bool("direct", false, "open the file with O_DIRECT unbuffered I/O")
	flag.Parse()

	if *path == "" {
		log.Fatal("pgshell: -file is required")
	}

	logger := logrus.StandardLogger()
	cfg := pagestore.PagerConfig{Logger: logger}

	var pager *pagestore.Pager
	var err error
	if *direct {
		pager, err = pagestore.OpenDirect(*path, cfg)
	} else {
		pager, err = pagestore.Open(*path, cfg)
	}
	if err != nil {
		log.Fatalf("pgshell: open %s: %v", *path, err)
	}
	defer pager.Teardown()

	currentDir, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "pgshell> ",
		HistoryFile: filepath.Join(currentDir, ".pgshell_history"),
	})
	if err != nil {
		log.Fatalf("pgshell: readline init: %v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := dispatch(pager, line); err != nil {
			if err == errQuit {
				break
			}
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}
