package videoslim

// Version is compared against the newest published release tag by the update checker.
const Version = "v2.0.0"
