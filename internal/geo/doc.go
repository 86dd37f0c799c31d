// Package geo provides spherical-earth geodesy over decimal-degree
// latitude/longitude coordinates.
//
// Responsibilities: great-circle distance (haversine) and the direct
// geodetic solve (destination from origin, bearing, and distance), plus
// coordinate validation and angle normalization.
//
// All functions are pure and keep no state; the Earth radius is a package
// constant rather than a configurable so every caller agrees on it.
package geo
