package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
)

func TestRespondErrMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{err: errs.Protocol("op", "bad id"), status: http.StatusBadRequest, code: "protocol", msg: "bad id"},
		{err: errs.Authorization("op", "nope"), status: http.StatusForbidden, code: "authorization", msg: "nope"},
		{err: errs.NotFound("op", "ticket not found"), status: http.StatusNotFound, code: "not_found", msg: "ticket not found"},
		{err: errs.Conflict("op", "already claimed"), status: http.StatusConflict, code: "conflict", msg: "already claimed"},
		{err: errors.New("dial tcp: secret host"), status: http.StatusInternalServerError, code: "internal", msg: "internal error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondErr(c, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status want=%d got=%d", tc.err, tc.status, rec.Code)
		}
		var env ErrorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Error.Code != tc.code || env.Error.Message != tc.msg {
			t.Fatalf("%v: body want=%s/%q got=%s/%q", tc.err, tc.code, tc.msg, env.Error.Code, env.Error.Message)
		}
	}
}
