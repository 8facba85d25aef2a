package middleware

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware 创建请求日志中间件
// 记录每个请求的方法、路径、状态码和耗时
// 返回:
//   - gin.HandlerFunc: Gin 中间件函数
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		start := time.Now()

		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery
		if raw != "" {
			path = path + "?" + raw
		}

		// 处理请求
		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		logLine := fmt.Sprintf("%d | %13v | %15s | %-7s %s",
			statusCode, latency.Truncate(time.Microsecond), clientIP, method, path)
		if errorMessage != "" {
			logLine += " | " + errorMessage
		}

		// 根据状态码选择日志级别
		if statusCode >= 500 {
			log.Printf("[ERROR] %s", logLine)
		} else if statusCode >= 400 {
			log.Printf("[WARN] %s", logLine)
		} else {
			log.Printf("[INFO] %s", logLine)
		}
	}
}
