// Inspect dumps the relay's badger journal as a table, for poking at what
// the Recorder actually persisted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chat-relay/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "/tmp/chat-relay-journal", "Path to the badger journal")
	prefix := flag.String("prefix", "room:", "Key prefix to scan (room:, direct: or seen:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening the journal: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Room/Target", "Sender", "Content-Type", "At", "Payload"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				if strings.HasPrefix(key, "seen:") {
					table.Append([]string{key, "", "", "", string(v), ""})
					return nil
				}

				var rec storage.Record
				if err := json.Unmarshal(v, &rec); err != nil {
					// A bad record should not kill the whole dump.
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}

				target := rec.Room
				if target == "" {
					target = rec.Target
				}

				payload := string(rec.Payload)
				if len(payload) > 48 {
					payload = payload[:48] + "..."
				}

				table.Append([]string{
					key,
					target,
					rec.Sender,
					rec.ContentType,
					rec.At.Format("2006-01-02 15:04:05"),
					payload,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning the journal: ", err)
	}

	table.Render()
}
