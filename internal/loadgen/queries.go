package loadgen

// DefaultQueries are the built-in synthetic workload templates. All of
// them read catalog views and DMVs only, so the generator is safe to point
// at any instance without touching user data.
func DefaultQueries() QuerySet {
	return QuerySet{
		ClassLight: {
			"SELECT COUNT(*) FROM sys.databases",
			"SELECT COUNT(*) FROM sys.objects WHERE type = 'U'",
			"SELECT @@VERSION",
			"SELECT GETDATE(), @@SERVERNAME",
			"SELECT name, database_id FROM sys.databases",
			"SELECT name, object_id FROM sys.objects WHERE type = 'U'",
			"SELECT SUM(size) FROM sys.master_files",
		},
		ClassMedium: {
			`SELECT d.name, COUNT(*) AS TableCount
FROM sys.databases d
CROSS APPLY (
    SELECT TOP 100 * FROM sys.objects WHERE type = 'U'
) o
GROUP BY d.name`,
			`SELECT type, COUNT(*) AS ObjectCount, AVG(object_id) AS AvgObjectId
FROM sys.objects
GROUP BY type`,
			`WITH Numbers AS (
    SELECT TOP 1000 ROW_NUMBER() OVER (ORDER BY (SELECT NULL)) AS n
    FROM sys.objects a, sys.objects b
)
SELECT AVG(n), SUM(n), MIN(n), MAX(n) FROM Numbers`,
			`SELECT mf.name, mf.size * 8 / 1024 AS SizeMB, mf.growth, d.name AS DatabaseName
FROM sys.master_files mf
JOIN sys.databases d ON mf.database_id = d.database_id
ORDER BY mf.size DESC`,
		},
		ClassHeavy: {
			`WITH Numbers AS (
    SELECT TOP 10000 ROW_NUMBER() OVER (ORDER BY (SELECT NULL)) AS n
    FROM sys.all_objects a
    CROSS JOIN sys.all_objects b
)
SELECT n, n * n AS Squared, n * n * n AS Cubed, SQRT(CAST(n AS FLOAT)) AS SquareRoot
FROM Numbers
WHERE n % 2 = 0`,
			`SELECT o1.name AS Object1, o2.name AS Object2,
       o1.object_id + o2.object_id AS CombinedId
FROM sys.objects o1
CROSS JOIN sys.objects o2
WHERE o1.object_id < 1000 AND o2.object_id < 1000`,
			`WITH Numbers(n) AS (
    SELECT 1
    UNION ALL
    SELECT n + 1 FROM Numbers WHERE n < 5000
)
SELECT AVG(CAST(n AS FLOAT))   AS Average,
       STDEV(CAST(n AS FLOAT)) AS StdDev,
       VAR(CAST(n AS FLOAT))   AS Variance
FROM Numbers
OPTION (MAXRECURSION 5000)`,
		},
	}
}
