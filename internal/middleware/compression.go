package middleware

import (
	brotli "github.com/anargu/gin-brotli"
	"github.com/gin-gonic/gin"
)

// Compression compresses responses with brotli at the default quality.
// Clients that do not advertise brotli support get identity responses.
func Compression() gin.HandlerFunc {
	return brotli.Brotli(brotli.DefaultCompression)
}
