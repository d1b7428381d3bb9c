// Package httpserver exposes the polling, push and announce endpoints over echo.
package httpserver
