// Package livetl provides a dictionary-driven, in-page translation engine for
// continuously mutating HTML documents.
//
// Livetl rewrites recognized text fragments into a target language using an
// indexed dictionary, a bounded resolution cache and a guarded partial-match
// pass. A change scheduler watches document mutations and triggers at most one
// translation pass per meaningful change.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/livetl/config"
//	    "github.com/ZaguanLabs/livetl/dom"
//	    "github.com/ZaguanLabs/livetl/engine"
//	    "github.com/ZaguanLabs/livetl/source"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    e, err := engine.New(engine.WithConfig(config.Default()))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Load dictionary
//	    if err := e.LoadDictionary(ctx, source.NewFile("zh-CN.json")); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Translate a document once
//	    doc, _ := dom.ParseString("<main><p>Pull requests</p></main>")
//	    if _, err := e.TranslateOnce(ctx, doc, "/owner/repo/pulls"); err != nil {
//	        log.Fatal(err)
//	    }
//	    out, _ := doc.HTML()
//	    fmt.Println(out)
//	}
package livetl
