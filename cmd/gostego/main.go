// GoStego — LSB steganography for images and 16-bit PCM audio.
//
// Usage:
//
//	gostego embed -i <carrier> -o <output> (--message <text> | --payload <file>)
//	gostego extract -i <file> [-o <output>]
//	gostego capacity -i <file>
//	gostego cover -o <file> [options]
//	gostego keygen
//	gostego seal|open [--key <hex>] ...
//	gostego serve [--config <path>] [--port 8080]
package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xob0t/GoStego/clients/server"
	"github.com/xob0t/GoStego/internal/config"
	"github.com/xob0t/GoStego/pkg/generator"
	"github.com/xob0t/GoStego/pkg/stego"
	"github.com/xob0t/GoStego/pkg/token"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "embed", "hide":
		err = runEmbed(os.Args[2:], os.Stdout)
	case "extract", "retrieve":
		err = runExtract(os.Args[2:], os.Stdout)
	case "capacity", "cap":
		err = runCapacity(os.Args[2:], os.Stdout)
	case "cover", "gen":
		err = runCover(os.Args[2:], os.Stdout)
	case "keygen":
		err = runKeygen(os.Stdout)
	case "seal":
		err = runSeal(os.Args[2:], os.Stdout)
	case "open":
		err = runOpen(os.Args[2:], os.Stdout)
	case "serve":
		err = server.RunServe(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", os.Args[1])
	}
	if err != nil {
		fatal(err)
	}
}

// isAudio reports whether a carrier should go through the WAV path. The
// extension decides; otherwise the RIFF/WAVE magic is sniffed.
func isAudio(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return true
	}
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func runEmbed(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	var input, output, msg, payloadPath string
	fs.StringVar(&input, "i", "", "Carrier file (image or 16-bit PCM WAV)")
	fs.StringVar(&input, "input", "", "Carrier file")
	fs.StringVar(&output, "o", "", "Output file (.png for images, .wav for audio)")
	fs.StringVar(&output, "output", "", "Output file")
	fs.StringVar(&msg, "m", "", "Message text to hide")
	fs.StringVar(&msg, "message", "", "Message text to hide")
	fs.StringVar(&payloadPath, "payload", "", "File whose bytes to hide ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" || output == "" {
		return fmt.Errorf("-i and -o are required")
	}
	if (msg == "") == (payloadPath == "") {
		return fmt.Errorf("exactly one of --message or --payload is required")
	}

	carrier, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	payload := []byte(msg)
	if payloadPath != "" {
		if payload, err = readInput(payloadPath); err != nil {
			return err
		}
	}

	var result []byte
	var mime string
	if isAudio(input, carrier) {
		result, mime, err = stego.EmbedAudio(carrier, payload)
	} else {
		result, mime, err = stego.EmbedImage(carrier, payload)
	}
	if err != nil {
		return err
	}
	if want := mimeExt(mime); !strings.EqualFold(filepath.Ext(output), want) {
		fmt.Fprintf(os.Stderr, "Warning: output is %s; consider a %s extension\n", mime, want)
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(out, "Hidden %d bytes: %s\n", len(payload), output)
	return nil
}

func runExtract(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var input, output string
	fs.StringVar(&input, "i", "", "Stego file")
	fs.StringVar(&input, "input", "", "Stego file")
	fs.StringVar(&output, "o", "", "Write payload to file instead of stdout")
	fs.StringVar(&output, "output", "", "Write payload to file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return fmt.Errorf("-i is required")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	var payload []byte
	if isAudio(input, data) {
		payload, err = stego.ExtractAudio(data)
	} else {
		payload, err = stego.ExtractImage(data)
	}
	if err != nil {
		return err
	}

	if output != "" {
		return os.WriteFile(output, payload, 0644)
	}
	_, err = out.Write(payload)
	return err
}

func runCapacity(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("capacity", flag.ExitOnError)
	var input string
	fs.StringVar(&input, "i", "", "Carrier file")
	fs.StringVar(&input, "input", "", "Carrier file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return fmt.Errorf("-i is required")
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	var c stego.Carrier
	if isAudio(input, data) {
		g, err := stego.DecodePCM(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Audio: %d Hz, %d channel(s), %d frames\n", g.SampleRate, g.Channels, g.Frames())
		c = g
	} else {
		g, format, err := stego.DecodeRGB(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Image: %s %dx%d\n", format, g.Width, g.Height)
		c = g
	}
	fmt.Fprintf(out, "Slots:       %d bits\n", stego.MaxCapacityBits(c))
	fmt.Fprintf(out, "Max payload: %d bytes\n", stego.MaxPayloadBytes(c))
	return nil
}

func runCover(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cover", flag.ExitOnError)
	var (
		output  string
		pattern string
		cfg     generator.Config
	)
	fs.StringVar(&output, "o", "", "Output file (.png, .bmp or .wav)")
	fs.StringVar(&output, "output", "", "Output file (.png, .bmp or .wav)")
	fs.IntVar(&cfg.Width, "w", 1280, "Width in pixels")
	fs.IntVar(&cfg.Width, "width", 1280, "Width in pixels")
	fs.IntVar(&cfg.Height, "h", 720, "Height in pixels")
	fs.IntVar(&cfg.Height, "height", 720, "Height in pixels")
	fs.StringVar(&cfg.Color, "color", "random", "Background color for solid images: hex or 'random'")
	fs.StringVar(&pattern, "pattern", string(generator.PatternNoise), "Fill: solid, noise or gradient")
	fs.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Noise seed")
	fs.Float64Var(&cfg.Duration, "duration", 1, "Audio duration in seconds")
	fs.IntVar(&cfg.Rate, "rate", 44100, "Audio sample rate in Hz")
	fs.IntVar(&cfg.Channels, "channels", 1, "Audio channels")
	fs.Float64Var(&cfg.Tone, "tone", 440, "Tone frequency in Hz for solid/gradient audio")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if output == "" {
		return fmt.Errorf("output file is required (-o)")
	}
	cfg.Pattern = generator.Pattern(pattern)

	bits, err := generator.CapacityBits(strings.ToLower(filepath.Ext(output)), cfg)
	if err != nil {
		return err
	}
	if err := generator.Generate(output, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Done: %s (max payload %d bytes)\n", output, max(bits/8-stego.HeaderBytes, 0))
	return nil
}

func runKeygen(out io.Writer) error {
	key, err := token.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hex.EncodeToString(key))
	return nil
}

// sealerFlag registers --key, falling back to the environment.
func sealerFlag(fs *flag.FlagSet) func() (*token.Sealer, error) {
	var keyHex string
	fs.StringVar(&keyHex, "key", "", "Hex sealing key (default $"+config.EnvSealKey+")")
	return func() (*token.Sealer, error) {
		if keyHex == "" {
			keyHex = os.Getenv(config.EnvSealKey)
		}
		if keyHex == "" {
			return nil, fmt.Errorf("--key or %s is required", config.EnvSealKey)
		}
		key, err := token.ParseKey(keyHex)
		if err != nil {
			return nil, err
		}
		return token.NewSealer(key)
	}
}

func runSeal(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	sealer := sealerFlag(fs)
	var rec token.Record
	fs.StringVar(&rec.PatientID, "patient-id", "", "Patient ID")
	fs.StringVar(&rec.PatientName, "patient-name", "", "Patient name")
	fs.StringVar(&rec.Message, "m", "", "Message text")
	fs.StringVar(&rec.Message, "message", "", "Message text")
	fs.StringVar(&rec.Sender, "sender", "", "Sender name")
	fs.StringVar(&rec.Recipient, "recipient", "", "Recipient name (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if rec.PatientID == "" || rec.Message == "" {
		return fmt.Errorf("--patient-id and --message are required")
	}

	s, err := sealer()
	if err != nil {
		return err
	}
	tok, err := s.Seal(rec)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(tok))
	return nil
}

func runOpen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	sealer := sealerFlag(fs)
	var input string
	fs.StringVar(&input, "i", "-", "Token file ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := sealer()
	if err != nil {
		return err
	}
	tok, err := readInput(input)
	if err != nil {
		return err
	}
	rec, err := s.Open(bytes.TrimSpace(tok))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Patient:   %s (%s)\n", rec.PatientName, rec.PatientID)
	fmt.Fprintf(out, "Sender:    %s\n", rec.Sender)
	if rec.Recipient != "" {
		fmt.Fprintf(out, "Recipient: %s\n", rec.Recipient)
	}
	fmt.Fprintf(out, "Created:   %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Message:   %s\n", rec.Message)
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func mimeExt(mime string) string {
	if mime == stego.MIMEAudioWAV {
		return ".wav"
	}
	return ".png"
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Print(`GoStego — LSB steganography for images and 16-bit PCM audio (Pure Go)

USAGE:
    gostego embed -i <carrier> -o <output> (-m <text> | --payload <file>)
    gostego extract -i <file> [-o <output>]
    gostego capacity -i <file>
    gostego cover -o <file> [options]
    gostego keygen
    gostego seal --patient-id <id> -m <text> [options]
    gostego open [-i <token file>]
    gostego serve [--config <path>] [--port 8080]

CARRIERS:
    Images (PNG, BMP, GIF, TIFF, WebP, JPEG) are written back as PNG.
    Audio must be 16-bit PCM WAV and is written back as WAV.
    JPEG and lossy WebP can be used as embed input only.

COVER:
    -o, --output <path>    Output file (.png, .bmp or .wav)
    --pattern <name>       solid, noise or gradient (default: noise)
    --color <hex>          Solid image color or 'random' (default: random)
    -w, --width <px>       Width in pixels (default: 1280)
    -h, --height <px>      Height in pixels (default: 720)
    --seed <n>             Noise seed (default: time-based)
    --duration <sec>       Audio duration (default: 1)
    --rate <hz>            Audio sample rate (default: 44100)
    --channels <n>         Audio channels (default: 1)
    --tone <hz>            Tone frequency for solid/gradient audio (default: 440)

TOKENS:
    --key <hex>            Sealing key; defaults to $GOSTEGO_SEAL_KEY

SERVER:
    gostego serve --config gostego.toml     Start the HTTP API

EXAMPLES:
    gostego cover -o cover.png -w 640 -h 480
    gostego embed -i cover.png -o secret.png -m "hello"
    gostego extract -i secret.png
    gostego capacity -i song.wav
    export GOSTEGO_SEAL_KEY=$(gostego keygen)
    gostego seal --patient-id P-1 -m "BP 120/80" > token.txt
    gostego embed -i song.wav -o secret.wav --payload token.txt
    gostego extract -i secret.wav | gostego open
`)
}
