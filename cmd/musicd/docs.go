package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           musicd API
// @version         1.0
// @description     HTTP API for text-to-music generation.
//
// @BasePath  /
//
// @schemes http
