package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return 0
	}

	sub := args[0]
	var err error
	switch sub {
	case "speech":
		err = cmdSpeech(args[1:])
	case "music":
		err = cmdMusic(args[1:])
	case "sfx":
		err = cmdSFX(args[1:])
	case "qwen-tts":
		err = cmdQwenTTS(args[1:])
	case "voice-clone":
		err = cmdVoiceClone(args[1:])
	case "voice-design":
		err = cmdVoiceDesign(args[1:])
	case "image":
		err = cmdImage(args[1:])
	case "gemini-image":
		err = cmdGeminiImage(args[1:])
	case "video":
		err = cmdVideo(args[1:])
	case "veo":
		err = cmdVeo(args[1:])
	case "3d":
		err = cmd3D(args[1:])
	case "publish":
		err = cmdPublish(args[1:])
	case "version":
		fmt.Println(version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", sub)
		printUsage()
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `genix %s

Usage:
  genix <subcommand> [flags]

Subcommands:
  speech        Generate speech with ElevenLabs TTS
  music         Generate music with ElevenLabs
  sfx           Generate a sound effect with ElevenLabs
  qwen-tts      Generate speech with DashScope Qwen realtime TTS
  voice-clone   Manage DashScope cloned voices (create/list/delete)
  voice-design  Manage DashScope designed voices (create/list/query/delete)
  image         Generate or edit images with OpenAI GPT Image
  gemini-image  Generate images with Google Gemini
  video         Generate video with OpenAI Sora
  veo           Generate video with Google Veo
  3d            Generate a 3D model with Tripo
  publish       Upload a generated asset to S3
  version       Print version

Run "genix <subcommand> -h" for flags.
`, version)
}
