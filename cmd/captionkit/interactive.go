package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/clipboard"
	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/notify"
	"github.com/example/captionkit/internal/preview"
	"github.com/example/captionkit/internal/publish"
)

type commandList []string

func (c *commandList) String() string {
	return strings.Join(*c, ";")
}

func (c *commandList) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	copyImage    = clipboard.WriteImage
	showPreview  = func(w *preview.Window) { w.Run() }
	newPublisher = publish.New
	isTerminal   = func(r io.Reader) bool {
		f, ok := r.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
)

var errUnknownCommand = errors.New("unknown command")

type interactiveCmd struct {
	*root
	fs    *flag.FlagSet
	execs commandList

	app    *app.App
	toasts *notify.Recorder
}

func (i *interactiveCmd) FlagSet() *flag.FlagSet {
	return i.fs
}

func (i *interactiveCmd) Program() string {
	return i.root.subcommand("interactive")
}

func parseInteractiveCmd(args []string, r *root) (*interactiveCmd, error) {
	fs := flag.NewFlagSet("interactive", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &interactiveCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.Var(&c.execs, "e", "execute a command instead of reading standard input (may be repeated)")
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (i *interactiveCmd) start() {
	if i.app != nil {
		return
	}
	i.toasts = &notify.Recorder{}
	i.app = app.New(i.appOptions(i.toasts))
}

func (i *interactiveCmd) Run() error {
	i.start()
	defer i.app.Close()

	if len(i.execs) > 0 {
		for _, line := range i.execs {
			done, err := i.executeLine(line)
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
		return nil
	}

	prompt := isTerminal(i.stdin)
	if prompt {
		fmt.Fprintln(i.stdout, "Enter commands (type 'help' for a list, 'exit' to quit)")
	}
	scanner := bufio.NewScanner(i.stdin)
	for {
		if prompt {
			fmt.Fprintf(i.stdout, "%s> ", i.app.Page())
		}
		if !scanner.Scan() {
			break
		}
		done, err := i.executeLine(scanner.Text())
		if err != nil {
			fmt.Fprintln(i.stderr, err)
		}
		if done {
			break
		}
	}
	return scanner.Err()
}

// executeLine runs one command and prints any toasts it raised. It reports
// true when the session should end.
func (i *interactiveCmd) executeLine(line string) (bool, error) {
	i.start()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	done, err := i.dispatch(name, fields[1:], rest)
	i.printToasts()
	return done, err
}

func (i *interactiveCmd) printToasts() {
	for _, t := range i.toasts.Drain() {
		switch t.Level {
		case notify.LevelAlert:
			fmt.Fprintf(i.stdout, "ALERT: %s\n", t.Message)
		case notify.LevelError:
			fmt.Fprintf(i.stdout, "error: %s\n", t.Message)
		default:
			fmt.Fprintln(i.stdout, t.Message)
		}
	}
}

func (i *interactiveCmd) dispatch(name string, args []string, rest string) (bool, error) {
	ctx := context.Background()
	switch name {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprint(i.stdout, (&UsageError{of: i}).Error())
		return false, nil
	case "status":
		i.printStatus()
		return false, nil
	case "search":
		if rest == "" {
			return false, errors.New("usage: search <query>")
		}
		results, err := i.app.Search(ctx, rest)
		if err != nil {
			return false, i.searchError(err)
		}
		printResults(i.stdout, results)
		return false, nil
	case "results":
		view, err := i.app.SearchView()
		if err != nil {
			return false, err
		}
		if view.Error != "" {
			fmt.Fprintln(i.stdout, view.Error)
		}
		printResults(i.stdout, view.Results)
		return false, nil
	case "pick":
		if len(args) != 1 {
			return false, errors.New("usage: pick <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("pick: %q is not a number", args[0])
		}
		if err := i.app.SelectResult(n - 1); err != nil {
			return false, err
		}
		fmt.Fprintf(i.stdout, "loading %s\n", i.app.View().Image.URL)
		return false, nil
	case "open":
		if rest == "" {
			return false, errors.New("usage: open <url|path>")
		}
		if err := i.app.SelectURL(rest); err != nil {
			return false, err
		}
		fmt.Fprintf(i.stdout, "loading %s\n", rest)
		return false, nil
	case "back":
		return false, i.app.Back()
	case "add":
		if len(args) != 1 {
			return false, errors.New("usage: add <text|rectangle|circle|triangle|polygon>")
		}
		kind, err := editor.ParseKind(args[0])
		if err != nil {
			return false, err
		}
		el, err := i.app.AddElement(kind)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(i.stdout, "added %s %s\n", el.Kind, el.ID)
		return false, nil
	case "preview":
		return false, i.preview()
	case "export":
		return false, i.export(ctx, rest)
	case "copy":
		return false, i.copy(ctx)
	case "publish":
		return false, i.publish(ctx)
	}

	ed, err := i.app.Editor()
	if err != nil {
		if isEditorCommand(name) {
			return false, err
		}
		return false, fmt.Errorf("%w: %s", errUnknownCommand, name)
	}
	return false, i.edit(ed, name, args, rest)
}

func isEditorCommand(name string) bool {
	switch name {
	case "list", "select", "deselect", "color", "colour", "move", "text", "resize", "remove", "undo", "caption", "focus", "blur":
		return true
	}
	return false
}

func (i *interactiveCmd) edit(ed *editor.State, name string, args []string, rest string) error {
	switch name {
	case "list":
		i.printElements(ed)
		return nil
	case "select":
		if len(args) != 1 {
			return errors.New("usage: select <ref>")
		}
		id, err := resolveElement(ed, args[0])
		if err != nil {
			return err
		}
		return ed.Select(id)
	case "deselect":
		ed.Deselect()
		return nil
	case "color", "colour":
		if len(args) != 1 {
			return errors.New("usage: color <colour>")
		}
		return ed.SetColor(args[0])
	case "move":
		if len(args) != 3 {
			return errors.New("usage: move <ref> <x> <y>")
		}
		id, err := resolveElement(ed, args[0])
		if err != nil {
			return err
		}
		nums, err := parseFloats(args[1:])
		if err != nil {
			return err
		}
		return ed.Move(id, nums[0], nums[1])
	case "text":
		if len(args) < 2 {
			return errors.New("usage: text <ref> <text>")
		}
		id, err := resolveElement(ed, args[0])
		if err != nil {
			return err
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
		changed, err := ed.EditText(id, text)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintln(i.stdout, "text unchanged")
		}
		return nil
	case "resize":
		if len(args) != 5 && len(args) != 6 {
			return errors.New("usage: resize <ref> <x> <y> <w> <h> [rotation]")
		}
		id, err := resolveElement(ed, args[0])
		if err != nil {
			return err
		}
		nums, err := parseFloats(args[1:])
		if err != nil {
			return err
		}
		box := editor.Box{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
		if len(nums) == 5 {
			box.Rotation = nums[4]
		}
		return ed.Transform(id, box)
	case "remove":
		if len(args) != 1 {
			return errors.New("usage: remove <ref>")
		}
		id, err := resolveElement(ed, args[0])
		if err != nil {
			return err
		}
		return ed.Remove(id)
	case "undo":
		if !ed.Undo() {
			fmt.Fprintln(i.stdout, "nothing to undo")
		}
		return nil
	case "caption":
		ed.SetCaption(rest)
		return nil
	case "focus":
		ed.FocusCaption()
		return nil
	case "blur":
		ed.BlurCaption()
		return nil
	}
	return fmt.Errorf("%w: %s", errUnknownCommand, name)
}

func (i *interactiveCmd) searchError(err error) error {
	view, verr := i.app.SearchView()
	if verr == nil && view.Error != "" {
		return fmt.Errorf("%s", view.Error)
	}
	return err
}

// resolveElement accepts a 1-based list position or an element id.
func resolveElement(ed *editor.State, ref string) (string, error) {
	elements := ed.Elements()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(elements) {
			return "", fmt.Errorf("%w: #%d", editor.ErrUnknownElement, n)
		}
		return elements[n-1].ID, nil
	}
	for _, el := range elements {
		if strings.EqualFold(el.ID, ref) {
			return el.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", editor.ErrUnknownElement, ref)
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for n, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		out[n] = v
	}
	return out, nil
}

func (i *interactiveCmd) printElements(ed *editor.State) {
	elements := ed.Elements()
	if len(elements) == 0 {
		fmt.Fprintln(i.stdout, "no elements")
		return
	}
	selected, _ := ed.Selected()
	measure := ed.Measurer()
	for n, el := range elements {
		marker := " "
		if el.ID == selected {
			marker = "*"
		}
		b := el.Bounds(measure)
		fmt.Fprintf(i.stdout, "%s %d. %-9s %s fill=%s at (%.0f,%.0f) %.0fx%.0f",
			marker, n+1, el.Kind, el.ID, el.Fill, b.X, b.Y, b.Width, b.Height)
		if el.Rotation != 0 {
			fmt.Fprintf(i.stdout, " rot=%.0f", el.Rotation)
		}
		if el.Kind == editor.KindText {
			fmt.Fprintf(i.stdout, " %q", el.Text)
		}
		fmt.Fprintln(i.stdout)
	}
}

func (i *interactiveCmd) printStatus() {
	v := i.app.View()
	fmt.Fprintf(i.stdout, "page: %s\n", v.Page)
	if v.Search != nil {
		if v.Search.Query != "" {
			fmt.Fprintf(i.stdout, "query: %s (%d results)\n", v.Search.Query, len(v.Search.Results))
		}
		if v.Search.Error != "" {
			fmt.Fprintf(i.stdout, "error: %s\n", v.Search.Error)
		}
		if v.Search.Notice != "" {
			fmt.Fprintln(i.stdout, v.Search.Notice)
		}
	}
	if v.Image != nil {
		state := "loading"
		switch {
		case v.Image.Loaded:
			state = "loaded"
		case v.Image.Error != "":
			state = "failed"
		}
		fmt.Fprintf(i.stdout, "image: %s (%s)\n", v.Image.URL, state)
		if v.Image.Photographer != "" {
			fmt.Fprintf(i.stdout, "photo by %s\n", v.Image.Photographer)
		}
	}
	if v.Editor != nil {
		fmt.Fprintf(i.stdout, "elements: %d, colour: %s\n", len(v.Editor.Elements), v.Editor.Color)
		caption := v.Editor.Caption
		if caption == "" {
			caption = v.Editor.Placeholder + " (placeholder)"
		}
		fmt.Fprintf(i.stdout, "caption: %s\n", caption)
	}
}

// settle waits for the background so an export right after open includes
// it. A failed load has already been reported through the toasts.
func (i *interactiveCmd) settle(ctx context.Context) {
	var le *app.AssetLoadError
	if err := i.app.WaitBackground(ctx); err != nil && !errors.As(err, &le) && !errors.Is(err, app.ErrWrongPage) {
		fmt.Fprintln(i.stderr, err)
	}
}

func (i *interactiveCmd) exportPath(arg string) string {
	if arg != "" {
		return arg
	}
	name := i.app.Filename()
	if dir := i.config.SaveDir; dir != "" {
		return filepath.Join(dir, name)
	}
	return name
}

func (i *interactiveCmd) export(ctx context.Context, arg string) error {
	if _, err := i.app.Editor(); err != nil {
		return err
	}
	i.settle(ctx)
	path := i.exportPath(arg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := i.app.Export(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	fmt.Fprintf(i.stdout, "saved %s\n", path)
	return nil
}

func (i *interactiveCmd) copy(ctx context.Context) error {
	if _, err := i.app.Editor(); err != nil {
		return err
	}
	i.settle(ctx)
	img, err := i.app.Composite(false)
	if err != nil {
		return err
	}
	if err := copyImage(img); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	fmt.Fprintln(i.stdout, "copied to clipboard")
	return nil
}

func (i *interactiveCmd) publish(ctx context.Context) error {
	if _, err := i.app.Editor(); err != nil {
		return err
	}
	i.settle(ctx)
	pub, err := newPublisher(ctx, publish.Target{
		Dir:      i.config.SaveDir,
		S3Bucket: i.config.Export.S3Bucket,
		S3Prefix: i.config.Export.S3Prefix,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	var buf bytes.Buffer
	name, err := i.app.Export(&buf)
	if err != nil {
		return err
	}
	loc, err := pub.Publish(ctx, name, buf.Bytes())
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	fmt.Fprintf(i.stdout, "published %s\n", loc)
	return nil
}

func (i *interactiveCmd) preview() error {
	if _, err := i.app.Editor(); err != nil {
		return err
	}
	src := func() (*image.RGBA, error) { return i.app.Preview() }
	w := preview.New(src, preview.WithTheme(i.theme), preview.WithTitle("captionkit preview"))
	showPreview(w)
	return nil
}
