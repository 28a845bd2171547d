//go:build gui

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/metcalfc/commonplace/internal/book"
	"github.com/metcalfc/commonplace/internal/config"
	"github.com/metcalfc/commonplace/internal/logger"
	"github.com/metcalfc/commonplace/internal/reader"
	"github.com/metcalfc/commonplace/internal/view"
)

// pageObject draws one slot of the spread.
func pageObject(slot reader.Slot) fyne.CanvasObject {
	if slot.Empty || slot.Fragment.Kind == book.KindBlank {
		return layout.NewSpacer()
	}
	f := slot.Fragment

	var body fyne.CanvasObject
	switch {
	case f.Image != nil:
		img := canvas.NewImageFromURI(imageURI(f.Image.Source))
		img.FillMode = canvas.ImageFillContain
		body = img
	case f.Kind == book.KindContent && len(f.Chunks) > 0:
		rt := widget.NewRichTextFromMarkdown(f.Markdown())
		rt.Wrapping = fyne.TextWrapWord
		body = container.NewVScroll(rt)
	default:
		label := widget.NewLabel(view.Text(f.HTML))
		label.Wrapping = fyne.TextWrapWord
		if f.Kind == book.KindCover || f.Kind == book.KindBack {
			label.Alignment = fyne.TextAlignCenter
		}
		body = container.NewVScroll(label)
	}

	folio := widget.NewLabel(fmt.Sprint(slot.Ordinal + 1))
	folio.Alignment = fyne.TextAlignCenter
	return container.NewBorder(nil, folio, nil, nil, body)
}

func imageURI(src string) fyne.URI {
	if strings.Contains(src, "://") {
		if u, err := storage.ParseURI(src); err == nil {
			return u
		}
	}
	return storage.NewFileURI(src)
}

func statusText(r *reader.Reader) string {
	s := fmt.Sprintf("Spread %d/%d", r.SpreadNumber(), r.TotalSpreads())
	st := r.State()
	if st.Transitioning {
		switch st.Direction {
		case reader.Forward:
			s += "  [turning →]"
		case reader.Backward:
			s += "  [← turning]"
		}
	}
	return s
}

func main() {
	single := flag.Bool("single", false, "Show one page at a time")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	showTOC := flag.Bool("toc", false, "Show table of contents at startup")
	freshStart := flag.Bool("fresh", false, "Start from the first page and forget the saved position")
	configPath := flag.String("config", "", "YAML config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "commonplace - commonplace book reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  commonplace [options] file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  →/SPACE  Next spread\n")
		fmt.Fprintf(os.Stderr, "  ←        Previous spread\n")
		fmt.Fprintf(os.Stderr, "  HOME     First spread\n")
		fmt.Fprintf(os.Stderr, "  T        Table of contents\n")
		fmt.Fprintf(os.Stderr, "  F        Fullscreen\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("commonplace %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *single {
		cfg.Book.PagesPerView = 1
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		log = logger.Nop()
	}
	defer log.Sync()

	sess, err := loadFile(flag.Arg(0), bookOptions(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read file '%s': %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	a := app.New()
	w := a.NewWindow("commonplace - " + sess.title)

	statusLabel := widget.NewLabel("")
	statusLabel.Alignment = fyne.TextAlignCenter
	spread := container.NewGridWithColumns(cfg.Book.PagesPerView)

	var r *reader.Reader
	updateDisplay := func() {
		if len(r.Pages()) == 0 {
			spread.Objects = []fyne.CanvasObject{widget.NewLabel("Nothing to read.")}
			spread.Refresh()
			statusLabel.SetText("")
			return
		}
		var objs []fyne.CanvasObject
		for _, s := range r.CurrentSpread() {
			objs = append(objs, pageObject(s))
		}
		spread.Objects = objs
		spread.Refresh()
		statusLabel.SetText(statusText(r))
	}

	r = reader.New(sess.pages, reader.Options{
		PagesPerView: cfg.Book.PagesPerView,
		FlipDuration: cfg.Book.FlipDuration,
		OnChange: func(reader.State) {
			fyne.Do(updateDisplay)
		},
	})

	pos := openPositions(sess, log)
	if *freshStart {
		if err := pos.clear(); err != nil {
			log.Warn("could not forget reading position", "error", err)
		}
	} else {
		r.Seek(pos.get())
	}
	save := func() {
		if err := pos.set(r.State().CurrentIndex); err != nil {
			log.Warn("could not save reading position", "error", err)
		}
	}

	outline := book.Outline(sess.pages)
	tocHint := ""
	if len(outline) > 0 {
		tocHint = "  T: contents"
	}
	controlsLabel := widget.NewLabel("←/→: turn  HOME: first" + tocHint + "  F: fullscreen  Q: quit")
	controlsLabel.Alignment = fyne.TextAlignCenter

	readingContent := container.NewBorder(statusLabel, controlsLabel, nil, nil, spread)

	var tocPanel *container.Split
	var mainContainer *fyne.Container
	tocVisible := *showTOC && len(outline) > 0

	if len(outline) > 0 {
		tocList := widget.NewList(
			func() int { return len(outline) },
			func() fyne.CanvasObject {
				return widget.NewLabel("Heading")
			},
			func(id widget.ListItemID, obj fyne.CanvasObject) {
				e := outline[id]
				label := obj.(*widget.Label)
				label.SetText(fmt.Sprintf("%s%s  %d", strings.Repeat("  ", e.Level-1), e.Text, e.Ordinal+1))
			},
		)
		tocList.OnSelected = func(id widget.ListItemID) {
			r.Seek(outline[id].Ordinal)
			tocVisible = false
			tocPanel.Leading.Hide()
			tocPanel.Refresh()
			tocList.UnselectAll()
			updateDisplay()
		}

		tocContainer := container.NewBorder(
			widget.NewLabel("Contents"),
			widget.NewLabel("Click to jump • T to close"),
			nil, nil,
			tocList,
		)
		tocPanel = container.NewHSplit(tocContainer, readingContent)
		tocPanel.Offset = 0.3
		if !tocVisible {
			tocContainer.Hide()
		}
		mainContainer = container.NewStack(tocPanel)
	} else {
		mainContainer = container.NewStack(readingContent)
	}

	quit := func() {
		save()
		r.Close()
		a.Quit()
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeyRight, fyne.KeySpace, fyne.KeyPageDown:
			if r.Handle(reader.SignalNext) {
				updateDisplay()
			}
		case fyne.KeyLeft, fyne.KeyPageUp:
			if r.Handle(reader.SignalPrev) {
				updateDisplay()
			}
		case fyne.KeyHome:
			if r.Seek(0) {
				updateDisplay()
			}
		case fyne.KeyF:
			w.SetFullScreen(!w.FullScreen())
		case fyne.KeyQ:
			quit()
		}
	})

	w.Canvas().SetOnTypedRune(func(ch rune) {
		switch ch {
		case 't', 'T':
			if tocPanel == nil {
				return
			}
			tocVisible = !tocVisible
			if tocVisible {
				tocPanel.Leading.Show()
			} else {
				tocPanel.Leading.Hide()
			}
			tocPanel.Refresh()
		}
	})

	w.SetOnClosed(func() {
		save()
		r.Close()
	})

	w.Resize(fyne.NewSize(1000, 700))
	w.SetContent(mainContainer)
	updateDisplay()
	w.ShowAndRun()
}
