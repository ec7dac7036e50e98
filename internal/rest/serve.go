// Copyright (C) 2023 Carlo Verona
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"github.com/gin-gonic/gin"
	"github.com/cverona/cutprep/internal/cube"
	"github.com/cverona/cutprep/internal/ops"
)

// Runs a REST API server for remote preprocessing on the given port
func Serve(port int) {
	r:=gin.Default()
	v1:=r.Group("/api/v1")
	{
		v1.GET ("/ping",       getPing)
		v1.POST("/preprocess", postPreprocess)
	}
	r.Run(fmt.Sprintf(":%d", port))
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

type preprocessRequest struct {
	Cube     *cube.Cube      `json:"cube"     binding:"required"`
	Pipeline json.RawMessage `json:"pipeline" binding:"required"`
}

// Applies a JSON-described operator pipeline to a posted cube and
// returns the transformed cube
func postPreprocess(c *gin.Context) {
	var req preprocessRequest
	if err:=c.ShouldBindJSON(&req); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err:=req.Cube.Validate(); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opSeq:=ops.NewOpSequenceDefault()
	if err:=json.Unmarshal(req.Pipeline, opSeq); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid pipeline: %s", err.Error())})
		return
	}

	ctx:=ops.NewContext(nopWriter{}) // progress chatter has no place in the response
	ctx.MaxThreads=1

	f:=req.Cube
	in:=func() (*cube.Cube, error) { return f, nil }
	promises, err:=opSeq.MakePromises([]ops.Promise{ops.Promise(in)}, ctx)
	if err!=nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	outs, err:=ops.MaterializeAll(promises, ctx.MaxThreads, false)
	if err!=nil || len(outs)==0 {
		msg:="preprocessing produced no image"
		if err!=nil { msg=err.Error() }
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cube": outs[0].Sanitized()})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
