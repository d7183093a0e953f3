package assets

import (
	"errors"
	"io"
	"mountains-server/core"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// HandlePut stores the raw request body verbatim under the caller-chosen id.
// An existing blob with the same id is overwritten; collision avoidance is the
// caller's job via a sufficiently random id prefix.
func HandlePut(store core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Asset id is required"})
			return
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithField("asset_id", id).WithError(err).Error("Failed to read upload body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		if err := store.PutAsset(r.Context(), id, data); err != nil {
			logrus.WithField("asset_id", id).WithError(err).Error("Failed to store asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store asset"})
			return
		}

		render.JSON(w, r, map[string]bool{"ok": true})
	}
}

// HandleGet serves a stored blob. The content type comes from sniffing, with
// the SVG detector running before the generic one; when neither can tell, the
// header is omitted and the request still succeeds.
func HandleGet(store core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Asset id is required"})
			return
		}

		data, err := store.GetAsset(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrAssetNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Asset not found"})
				return
			}
			logrus.WithField("asset_id", id).WithError(err).Error("Failed to load asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load asset"})
			return
		}

		if contentType := detectContentType(data); contentType != "" {
			w.Header().Set("Content-Type", contentType)
		} else {
			logrus.WithField("asset_id", id).Warn("MIME type for asset not known")
			// A nil entry keeps the server from sniffing the body and
			// emitting its own Content-Type on the first Write.
			w.Header()["Content-Type"] = nil
		}
		w.Write(data)
	}
}
