// Package screenshot describes a Steam screenshot file on disk.
//
// Steam writes screenshots below
// userdata/<user>/760/remote/<appid>/screenshots/<name>.jpg and a
// thumbnail copy below .../screenshots/thumbnails/. The application id is
// the directory directly above "screenshots".
package screenshot
