package config

const VersionDev = "<dev>"

// Version is the version of the glint application.
// It is set automatically when creating release builds.
var Version = VersionDev
