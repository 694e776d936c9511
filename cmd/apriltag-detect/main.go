// Command apriltag-detect runs the detector against a raw P5 PGM image and
// prints each detection's family, id, and geometry. It is a runnable
// demonstration of the public API, not a general-purpose image tool.
//
// Usage:
//
//	apriltag-detect [options] <family.toml> <family.bin> <input.pgm>
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/quadtag/apriltag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "apriltag-detect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("apriltag-detect", flag.ContinueOnError)
	decimate := fs.Float64("decimate", 2.0, "quad_decimate")
	sigma := fs.Float64("sigma", 0, "quad_sigma")
	maxHamming := fs.Int("max-hamming", 2, "maximum accepted bit errors per decode")
	sequential := fs.Bool("sequential", false, "disable parallel quad fitting/decoding")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 3 {
		fs.Usage()
		return fmt.Errorf("expected <family.toml> <family.bin> <input.pgm>")
	}

	tomlPath, binPath, pgmPath := rest[0], rest[1], rest[2]

	tomlBytes, err := os.ReadFile(tomlPath)
	if err != nil {
		return fmt.Errorf("reading family config: %w", err)
	}
	binBytes, err := os.ReadFile(binPath)
	if err != nil {
		return fmt.Errorf("reading family codes: %w", err)
	}
	fam, err := apriltag.LoadFamily(string(tomlBytes), binBytes)
	if err != nil {
		return fmt.Errorf("loading family: %w", err)
	}

	f, err := os.Open(pgmPath)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, err := readPGM(f)
	if err != nil {
		return fmt.Errorf("reading PGM: %w", err)
	}

	cfg := apriltag.NewDetectorConfig()
	cfg.QuadDecimate = *decimate
	cfg.QuadSigma = *sigma
	cfg.Parallel = !*sequential

	det := apriltag.NewDetector(cfg)
	det.AddFamily(fam, *maxHamming)

	for _, d := range det.Detect(img) {
		fmt.Printf("family=%s id=%d hamming=%d margin=%.3f center=(%.2f,%.2f) corners=%v\n",
			d.FamilyName, d.ID, d.Hamming, d.DecisionMargin, d.Center[0], d.Center[1], d.Corners)
	}
	return nil
}

// readPGM parses a raw-binary (P5) PGM: a "P5" magic, whitespace-separated
// width, height, and maxval tokens (comment lines starting with '#'
// skipped), followed by exactly width*height bytes for an 8-bit image.
func readPGM(r io.Reader) (*apriltag.Image, error) {
	br := bufio.NewReader(r)

	magic, err := readToken(br)
	if err != nil {
		return nil, err
	}
	if magic != "P5" {
		return nil, fmt.Errorf("unsupported PGM magic %q, want P5", magic)
	}

	width, err := readIntToken(br)
	if err != nil {
		return nil, err
	}
	height, err := readIntToken(br)
	if err != nil {
		return nil, err
	}
	maxval, err := readIntToken(br)
	if err != nil {
		return nil, err
	}
	if maxval != 255 {
		return nil, fmt.Errorf("unsupported PGM maxval %d, want 255", maxval)
	}

	img := apriltag.NewImage(width, height)
	if _, err := io.ReadFull(br, img.Buf); err != nil {
		return nil, fmt.Errorf("reading pixel data: %w", err)
	}
	return img, nil
}

func readToken(br *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := br.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '#' {
			for {
				c, err := br.ReadByte()
				if err != nil {
					return "", err
				}
				if c == '\n' {
					break
				}
			}
			continue
		}
		if isSpace(b) {
			if len(tok) > 0 {
				return string(tok), nil
			}
			continue
		}
		tok = append(tok, b)
	}
}

func readIntToken(br *bufio.Reader) (int, error) {
	tok, err := readToken(br)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range []byte(tok) {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid integer token %q", tok)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
