package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tubefetch/internal/consts"
	"tubefetch/internal/entity"
	"tubefetch/internal/errs"
	"tubefetch/internal/infrastructure/delivery/http/middleware"
	"tubefetch/internal/infrastructure/delivery/http/request"
	"tubefetch/internal/infrastructure/delivery/http/response"
)

type errorEvent struct {
	Error string `json:"error"`
}

func (ro *Router) handlerLog(r *http.Request, handler string) *slog.Logger {
	return ro.log.With(
		slog.String("handler", handler),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
}

// VideoInfo returns the normalized metadata of a video.
func (ro *Router) VideoInfo(w http.ResponseWriter, r *http.Request) {
	log := ro.handlerLog(r, "VideoInfo")

	ctx, cancel := context.WithTimeout(r.Context(), ro.cfg.HTTP.HandlerTimeout)
	defer cancel()

	var in request.VideoInfo
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	meta, err := ro.svc.GetVideoInfo(ctx, in.URL)
	if errors.Is(err, errs.ErrInvalidURL) {
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespVideoInfoFail, slog.String("url", in.URL), slog.Any("error", err))
		response.InternalServerError(w, consts.RespVideoInfoFail)

		return
	}

	log.DebugContext(ctx, consts.RespVideoInfoRetrieved, slog.String("url", in.URL))
	response.JSON(w, http.StatusOK, meta)
}

// Progress streams download progress as server-sent events until the
// download finishes, fails or the client goes away.
func (ro *Router) Progress(w http.ResponseWriter, r *http.Request) {
	log := ro.handlerLog(r, "Progress")
	ctx := r.Context()

	in := request.Progress{
		URL: r.URL.Query().Get("url"),
		ID:  r.URL.Query().Get("id"),
	}
	if err := in.Validate(); err != nil {
		log.DebugContext(ctx, consts.RespQueryParamMissing, slog.Any("error", err))
		response.BadRequest(w, consts.RespQueryParamMissing, err)

		return
	}

	stream, err := response.NewEventStream(w)
	if err != nil {
		log.ErrorContext(ctx, consts.RespStreamingUnsupported, slog.Any("error", err))
		response.InternalServerError(w, consts.RespStreamingUnsupported)

		return
	}

	defer ro.metrics.ProgressStreamOpened()()

	for update := range ro.svc.WatchProgress(ctx, in.URL, in.ID) {
		if update.Err != nil {
			msg := consts.RespDownloadFail
			if errors.Is(update.Err, errs.ErrProgressWaitTimeout) {
				msg = errs.ErrProgressWaitTimeout.Error()
			}

			if err := stream.Send(consts.EventError, errorEvent{Error: msg}); err != nil {
				log.DebugContext(ctx, "send error event", slog.Any("error", err))
			}

			return
		}

		if err := stream.Send(consts.EventProgress, update.Progress); err != nil {
			log.DebugContext(ctx, "progress stream closed", slog.Any("error", err))

			return
		}

		if update.Done {
			return
		}
	}
}

// Download runs a download and streams the resulting file as an attachment.
func (ro *Router) Download(w http.ResponseWriter, r *http.Request) {
	log := ro.handlerLog(r, "Download")

	ctx, cancel := context.WithTimeout(r.Context(), ro.cfg.HTTP.DownloadTimeout)
	defer cancel()

	var in request.Download
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	if err := in.Validate(); err != nil {
		log.ErrorContext(ctx, consts.RespUnprocessableEntity, slog.Any("error", err))
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)

		return
	}

	// once the attachment started, errors can only be logged
	started := false

	err := ro.svc.Download(ctx, in.Entity(), func(_ context.Context, d *entity.Delivery) error {
		started = true

		return response.Attachment(w, d.Filename, d.Size, d.Body)
	})

	switch {
	case err == nil:
	case started:
		log.WarnContext(ctx, "attachment interrupted", slog.Any("error", err))
	case errors.Is(err, errs.ErrInvalidURL), errors.Is(err, errs.ErrInvalidFormat):
		response.UnprocessableEntity(w, consts.RespUnprocessableEntity, err)
	case errors.Is(err, context.Canceled):
		// client is gone
	default:
		response.InternalServerError(w, consts.RespDownloadFail)
	}
}
