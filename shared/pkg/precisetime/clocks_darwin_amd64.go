package precisetime

// Intel macs run mach time at a 1/1 timebase.
const machTickNanos = 1.0
