// Package dubber dubs YouTube videos into another language.
//
// The pipeline downloads a video with yt-dlp, takes its captions from the
// timedtext endpoint or transcribes it with whisper.cpp, translates the
// timed segments, speaks them with piper and muxes the new track with
// ffmpeg. Translation is the part that has to keep working when the
// network does not:
//
//   - A LibreTranslate-compatible endpoint is called through a rate limited,
//     circuit-broken HTTP client.
//   - Each text gets a bounded number of attempts with linear backoff.
//   - Results are cached on disk, keyed by language pair and text.
//   - With offline mode on, failures degrade to the cache, a phrase
//     dictionary, an idiom table and finally the source text tagged with a
//     localized "translation unavailable" marker.
//
// # Quick Start
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	tr, err := dubber.NewTranslator(ctx, cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer tr.Close()
//
//	res, err := tr.TranslateText(ctx, "It's raining cats and dogs", translate.Options{
//		SourceLanguage: "en",
//		TargetLanguage: "tr",
//	})
//	fmt.Println(res.TranslatedText, res.Origin)
//
// Dub a whole video:
//
//	runner, err := dubber.NewRunner(cfg, tr, nil, nil)
//	job, err := runner.Run(ctx, "https://youtu.be/dQw4w9WgXcQ", pipeline.Options{
//		SourceLanguage: "en",
//		TargetLanguage: "tr",
//	})
//	fmt.Println(job.OutputPath)
//
// # Configuration
//
// config.Load reads dubber.yaml, dubber.yml or dubber.json from the current
// directory or $HOME/.config/dubber, then applies DUBBER_* environment
// variables:
//
//   - DUBBER_BASE_URL, DUBBER_API_KEY: translation endpoint
//   - DUBBER_OFFLINE_MODE: degrade instead of failing (default true)
//   - DUBBER_MAX_RETRIES, DUBBER_ATTEMPT_TIMEOUT, DUBBER_BACKOFF: retry policy
//   - DUBBER_CACHE_PATH: translation cache file
//   - DUBBER_YTDLP_PATH, DUBBER_FFMPEG_PATH, DUBBER_WHISPER_MODEL,
//     DUBBER_PIPER_MODEL: external tools
//
// # Error Handling
//
// Translation failures are *translate.Error values. Match their class with
// the re-exported sentinels:
//
//	if errors.Is(err, dubber.ErrOfflineUnavailable) {
//		fmt.Println("translation service down and offline mode is off")
//	}
//
// or branch on the kind:
//
//	switch dubber.KindOf(err) {
//	case translate.KindNetwork, translate.KindTimeout:
//		// retry later
//	}
//
// # Dependencies
//
// yt-dlp and ffmpeg must be installed for downloads and dubbing. Speech
// recognition needs whisper.cpp and a ggml model, synthesis needs piper and
// an .onnx voice. Subtitles from existing captions need neither.
package dubber
