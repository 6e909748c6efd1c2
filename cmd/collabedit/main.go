package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"collabdocs/internal/client"
	"collabdocs/internal/editor"
)

// collabedit is a minimal terminal editing client: it logs in, opens a
// document, joins its room, relays local edits, and lets the session's
// autosave coordinator flush to the catalog in the background.

func main() {
	server := flag.String("server", "http://127.0.0.1:5000", "server base URL")
	username := flag.String("user", "", "username")
	password := flag.String("password", "", "password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -password are required")
	}

	ctx := context.Background()
	api := client.NewAPI(*server)
	userID, err := api.Login(ctx, *username, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Printf("logged in as %s (id=%d)\n", *username, userID)

	// mu guards session/relay/docID: the relay's read loop reads them from
	// the OnChanges callback while this goroutine reassigns them.
	var (
		mu      sync.Mutex
		session *editor.Session
		relay   *client.Relay
		docID   uint64
	)
	openDoc := func() (*editor.Session, uint64) {
		mu.Lock()
		defer mu.Unlock()
		return session, docID
	}
	closeDoc := func() {
		mu.Lock()
		s, r := session, relay
		session, relay, docID = nil, nil, 0
		mu.Unlock()
		if s != nil {
			s.Close()
		}
		if r != nil {
			r.Close()
		}
	}
	defer closeDoc()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: list | create <title> | open <id> | append <text> | title <text> | show | save | quit")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "list":
			docs, err := api.List(ctx)
			if err != nil {
				fmt.Printf("list failed: %v\n", err)
				continue
			}
			for _, d := range docs {
				fmt.Printf("%4d  %-30s  %s\n", d.ID, d.Title, d.UpdatedAt.Format("Jan 2 2006 15:04"))
			}

		case "create":
			doc, err := api.Create(ctx, rest, "")
			if err != nil {
				fmt.Printf("create failed: %v\n", err)
				continue
			}
			fmt.Printf("created document %d: %s\n", doc.ID, doc.Title)

		case "open":
			id, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				fmt.Println("usage: open <id>")
				continue
			}
			closeDoc()

			r, err := client.DialRelay(*server, api.Token(), client.RelayOptions{
				OnChanges: func(d uint64, delta json.RawMessage) {
					s, current := openDoc()
					if s != nil && d == current {
						if err := s.ApplyRemote(delta); err != nil {
							log.Printf("apply remote delta: %v", err)
						}
					}
				},
			})
			if err != nil {
				fmt.Printf("relay dial failed: %v\n", err)
				continue
			}
			s, err := editor.OpenSession(ctx, api, r, id, userID, editor.SessionOptions{
				OnSaveError: func(err error) { fmt.Printf("\nautosave failed: %v\n> ", err) },
			})
			if err != nil {
				r.Close()
				fmt.Printf("open failed: %v\n", err)
				continue
			}
			if err := r.JoinDocument(id); err != nil {
				s.Close()
				r.Close()
				fmt.Printf("join failed: %v\n", err)
				continue
			}
			mu.Lock()
			relay, session, docID = r, s, id
			mu.Unlock()
			fmt.Printf("opened %q (%d chars)\n", s.Title(), len(s.Content()))

		case "append":
			s, _ := openDoc()
			if s == nil {
				fmt.Println("no document open")
				continue
			}
			if err := s.Insert(s.Surface().Len(), rest); err != nil {
				fmt.Printf("edit failed: %v\n", err)
			}

		case "title":
			s, _ := openDoc()
			if s == nil {
				fmt.Println("no document open")
				continue
			}
			s.SetTitle(rest)
			// Same forced-save path as the title field losing focus.
			if err := s.SaveNow(ctx); err != nil {
				fmt.Printf("save failed: %v\n", err)
			}

		case "show":
			s, _ := openDoc()
			if s == nil {
				fmt.Println("no document open")
				continue
			}
			fmt.Printf("-- %s --\n%s\n", s.Title(), s.Content())

		case "save":
			s, _ := openDoc()
			if s == nil {
				fmt.Println("no document open")
				continue
			}
			if err := s.SaveNow(ctx); err != nil {
				fmt.Printf("save failed: %v\n", err)
			} else {
				fmt.Printf("saved at %s\n", s.LastSaved().Format(time.Kitchen))
			}

		case "quit", "exit":
			return

		case "":
			// ignore blank lines

		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}
