package main

import (
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Clark-Hu/recetas-api/internal/logging"
	"github.com/Clark-Hu/recetas-api/internal/media"
)

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		dir     = flag.String("dir", "mock-media", "directory uploaded files are written to")
		apiKey  = flag.String("api-key", os.Getenv("MEDIA_API_KEY"), "required X-API-Key value (empty disables the check)")
		public  = flag.String("public-url", "", "base URL used in replies (defaults to http://localhost:<port>)")
		maxSize = flag.Int64("max-bytes", 5<<20, "maximum accepted upload size")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: "console", Service: "media-mock"})

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create media dir")
	}
	base := *public
	if base == "" {
		base = "http://localhost:" + *port
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if *verbose {
		r.Use(middleware.Logger)
	}
	r.Post("/upload", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, *maxSize+(1<<20))
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		ext, err := media.Extension(header.Header.Get("Content-Type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			return
		}
		folder := filepath.Base(r.FormValue("folder"))
		if folder == "." || folder == "/" || folder == "" {
			folder = "misc"
		}
		if err := os.MkdirAll(filepath.Join(*dir, folder), 0o755); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		name := uuid.NewString() + ext
		out, err := os.Create(filepath.Join(*dir, folder, name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		written, copyErr := io.Copy(out, io.LimitReader(file, *maxSize))
		if closeErr := out.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			http.Error(w, copyErr.Error(), http.StatusInternalServerError)
			return
		}

		logger.Debug().Str("folder", folder).Str("file", name).Int64("bytes", written).Msg("stored upload")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"url": base + path.Join("/files", folder, name)})
	})
	r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(*dir))))

	addr := ":" + *port
	logger.Info().Str("addr", addr).Str("dir", *dir).Msg("mock media host listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
