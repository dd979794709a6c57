package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apiCommon "github.com/oasisprotocol/blockview/api/common"
	"github.com/oasisprotocol/blockview/common"
	"github.com/oasisprotocol/blockview/types"
	"github.com/oasisprotocol/blockview/view"
)

var blockHashRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

func parseHeight(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "height")
	height, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || height < 0 {
		return 0, apiCommon.BadRequestf("invalid block height '%s'", raw)
	}
	return height, nil
}

func parseHash(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "hash")
	if !blockHashRe.MatchString(raw) {
		return "", apiCommon.BadRequestf("invalid block hash '%s'", raw)
	}
	return strings.ToLower(raw), nil
}

// lookup resolves the block named by the request for frag, by height or
// by hash depending on the route.
type lookup func(r *http.Request, frag *view.Fragment) (*types.Block, error)

func (a *BlockviewAPI) byHeight(r *http.Request, frag *view.Fragment) (*types.Block, error) {
	height, err := parseHeight(r)
	if err != nil {
		return nil, err
	}
	return a.resolver.Block(r.Context(), height, frag)
}

func (a *BlockviewAPI) byHash(r *http.Request, frag *view.Fragment) (*types.Block, error) {
	hash, err := parseHash(r)
	if err != nil {
		return nil, err
	}
	return a.resolver.BlockByHash(r.Context(), hash, frag)
}

func (a *BlockviewAPI) blockPage(w http.ResponseWriter, r *http.Request) {
	a.servePage(w, r, a.byHeight)
}

func (a *BlockviewAPI) blockByHashPage(w http.ResponseWriter, r *http.Request) {
	a.servePage(w, r, a.byHash)
}

func (a *BlockviewAPI) blockView(w http.ResponseWriter, r *http.Request) {
	a.serveView(w, r, a.byHeight)
}

func (a *BlockviewAPI) blockByHashView(w http.ResponseWriter, r *http.Request) {
	a.serveView(w, r, a.byHash)
}

// servePage renders the full block page as HTML. A missing block is a
// regular page showing the empty result.
func (a *BlockviewAPI) servePage(w http.ResponseWriter, r *http.Request, find lookup) {
	block, err := find(r, view.FullBlockInfoFragment)
	if err != nil {
		a.pageError(w, r, err)
		return
	}

	title := "Block not found"
	if block != nil {
		title = fmt.Sprintf("Block %d", block.Height)
	}
	var buf bytes.Buffer
	if err := a.renderer.RenderPage(&buf, title, view.FullBlockInfo(block)); err != nil {
		a.pageError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// serveView replies with the full block view tree as JSON.
func (a *BlockviewAPI) serveView(w http.ResponseWriter, r *http.Request, find lookup) {
	block, err := find(r, view.FullBlockInfoFragment)
	if err != nil {
		a.jsonError(w, r, err)
		return
	}
	a.replyJSON(w, r, view.FullBlockInfo(block))
}

// StatusResponse is the reply of the status endpoint.
type StatusResponse struct {
	LatestHeight int64 `json:"latest_height"`
}

func (a *BlockviewAPI) status(w http.ResponseWriter, r *http.Request) {
	latest, err := a.resolver.LatestHeight(r.Context())
	if err != nil {
		a.jsonError(w, r, err)
		return
	}
	a.replyJSON(w, r, StatusResponse{LatestHeight: latest})
}

func (a *BlockviewAPI) latestBlockRedirect(w http.ResponseWriter, r *http.Request) {
	latest, err := a.resolver.LatestHeight(r.Context())
	if err != nil {
		a.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/blocks/%d", latest), http.StatusFound)
}

func (a *BlockviewAPI) pageNotFound(w http.ResponseWriter, r *http.Request) {
	a.pageError(w, r, apiCommon.ErrNotFound)
}

func (a *BlockviewAPI) jsonNotFound(w http.ResponseWriter, r *http.Request) {
	a.jsonError(w, r, apiCommon.ErrNotFound)
}

func (a *BlockviewAPI) replyJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		a.jsonError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (a *BlockviewAPI) logError(r *http.Request, err error) {
	if apiCommon.HttpCodeForError(err) >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			"request_id", r.Context().Value(common.RequestIDContextKey),
			"path", r.URL.Path,
			"err", err,
		)
	}
}

func (a *BlockviewAPI) pageError(w http.ResponseWriter, r *http.Request, err error) {
	a.logError(r, err)
	http.Error(w, apiCommon.PublicMessage(err), apiCommon.HttpCodeForError(err))
}

func (a *BlockviewAPI) jsonError(w http.ResponseWriter, r *http.Request, err error) {
	a.logError(r, err)
	apiCommon.ReplyWithError(w, err)
}
