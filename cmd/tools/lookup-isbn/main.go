// Quick one-shot ISBN lookup against the live providers, for debugging
// metadata quality without running the server.
//
// Usage:
//
//	go run ./cmd/tools/lookup-isbn -isbn 9780140328721
//	go run ./cmd/tools/lookup-isbn -isbn 9780140328721 -provider openlibrary
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"booklog/internal/lookup"
)

func main() {
	isbnFlag := flag.String("isbn", "", "ISBN-10 or ISBN-13 (dashes/spaces ok)")
	providerFlag := flag.String("provider", "google", "google or openlibrary")
	flag.Parse()

	isbn, err := lookup.NormalizeISBN(*isbnFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	var provider lookup.Provider
	switch *providerFlag {
	case "google":
		provider = lookup.NewGoogleBooks(os.Getenv("GOOGLE_BOOKS_API_KEY"))
	case "openlibrary":
		provider = lookup.NewOpenLibrary()
	default:
		fmt.Fprintf(os.Stderr, "unknown provider %q\n", *providerFlag)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := provider.LookupISBN(ctx, isbn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup %s: %v\n", isbn, err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(lookup.NormalizeRecord(rec), "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
