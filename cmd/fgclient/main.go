package main

// The fgclient tool exercises a filegate server from the command line. It
// can upload single files, download them by id and code, drive a bulk
// session, and print bundle contents.

import (
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/filegate/filegate/clientapi"
)

var (
	server = flag.String("server", "http://localhost:14000", "filegate server to use")
	token  = flag.String("token", "", "API token to authenticate with")
	output = flag.String("o", "", "write downloads to this file instead of stdout")

	usage = `
fgclient <flags> <command> <arguments>

Possible commands:

    upload <file>
    get <id> <code>
    range <id> <code> <from> <until>
    bundle <bundle id>
    bulk start
    bulk name <name>
    bulk text <text>
    bulk add <file>
    bulk commit
    bulk abandon
`
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(1)
	}

	conn := &clientapi.Connection{HostURL: *server, Token: *token}

	var err error
	switch args[0] {
	case "upload":
		if len(args) != 2 {
			fmt.Println("Usage: fgclient <flags> upload <file>")
			os.Exit(1)
		}
		err = doUpload(conn, args[1])
	case "get":
		if len(args) != 3 {
			fmt.Println("Usage: fgclient <flags> get <id> <code>")
			os.Exit(1)
		}
		err = doGet(conn, args[1], args[2], "", "")
	case "range":
		if len(args) != 5 {
			fmt.Println("Usage: fgclient <flags> range <id> <code> <from> <until>")
			os.Exit(1)
		}
		err = doGet(conn, args[1], args[2], args[3], args[4])
	case "bundle":
		if len(args) != 2 {
			fmt.Println("Usage: fgclient <flags> bundle <bundle id>")
			os.Exit(1)
		}
		err = doBundle(conn, args[1])
	case "bulk":
		err = doBulk(conn, args[1:])
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func doUpload(conn *clientapi.Connection, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	name := filepath.Base(filename)
	info, err := conn.Upload(name, mime.TypeByExtension(filepath.Ext(name)), f)
	if err != nil {
		return err
	}
	fmt.Println("id:  ", info.ID)
	fmt.Println("code:", info.Code)
	fmt.Println("size:", info.Size)
	fmt.Println("link:", info.DlLink)
	if info.TgLink != "" {
		fmt.Println("tg:  ", info.TgLink)
	}
	return nil
}

func doGet(conn *clientapi.Connection, id, code, from, until string) error {
	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if from == "" {
		return conn.Download(w, id, code)
	}
	a, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return err
	}
	b, err := strconv.ParseInt(until, 10, 64)
	if err != nil {
		return err
	}
	return conn.DownloadRange(w, id, code, a, b)
}

func doBundle(conn *clientapi.Connection, bid string) error {
	v, err := conn.Bundle(bid)
	if err != nil {
		return err
	}
	name, _ := v.GetString("Name")
	text, _ := v.GetString("Text")
	fmt.Println(name)
	fmt.Println(text)
	files, _ := v.GetObjectArray("Files")
	for _, f := range files {
		link, _ := f.GetString("Link")
		size, _ := f.GetInt64("Size")
		fmt.Printf("  %s (%d bytes)\n", link, size)
	}
	return nil
}

func doBulk(conn *clientapi.Connection, args []string) error {
	if len(args) == 0 {
		fmt.Println(usage)
		os.Exit(1)
	}
	switch args[0] {
	case "start":
		return conn.StartBulk()
	case "name":
		if len(args) != 2 {
			return fmt.Errorf("usage: bulk name <name>")
		}
		return conn.SetBulkName(args[1])
	case "text":
		if len(args) != 2 {
			return fmt.Errorf("usage: bulk text <text>")
		}
		return conn.SetBulkText(args[1])
	case "add":
		if len(args) != 2 {
			return fmt.Errorf("usage: bulk add <file>")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		name := filepath.Base(args[1])
		count, err := conn.AddBulkFile(name, mime.TypeByExtension(filepath.Ext(name)), f)
		if err != nil {
			return err
		}
		fmt.Println("files in session:", count)
		return nil
	case "commit":
		bid, link, err := conn.CommitBulk()
		if err != nil {
			return err
		}
		fmt.Println("bundle:", bid)
		fmt.Println("link:  ", link)
		return nil
	case "abandon":
		return conn.AbandonBulk()
	}
	return fmt.Errorf("unknown bulk command %q", args[0])
}
